// Package search queries the remote verse search endpoint and re-ranks its
// results locally by keyword coverage and order, with a broader fallback
// query when the first pass is weak.
package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/escalopa/quran-navigator/internal/domain"
	"github.com/escalopa/quran-navigator/internal/observe"
	"github.com/escalopa/quran-navigator/internal/query"
	"github.com/escalopa/quran-navigator/internal/textnorm"
)

const (
	defaultPrimarySize  = 20
	defaultFallbackSize = 50
	defaultCacheTTL     = 10 * time.Minute
)

// Option is a functional option for configuring a [Searcher].
type Option func(*Searcher)

func WithWeights(w Weights) Option {
	return func(s *Searcher) { s.weights = w }
}

// WithPageSizes sets the endpoint page size of the full and fallback queries.
func WithPageSizes(primary, fallback int) Option {
	return func(s *Searcher) {
		if primary > 0 {
			s.primarySize = primary
		}
		if fallback > 0 {
			s.fallbackSize = fallback
		}
	}
}

// WithCache stores final results in c for ttl.
func WithCache(c domain.SearchCache, ttl time.Duration) Option {
	return func(s *Searcher) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithMetrics(m *observe.Metrics) Option {
	return func(s *Searcher) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Searcher) { s.log = l }
}

// Searcher is safe for concurrent use.
type Searcher struct {
	endpoint     domain.SearchEndpoint
	weights      Weights
	primarySize  int
	fallbackSize int
	cache        domain.SearchCache
	cacheTTL     time.Duration
	metrics      *observe.Metrics
	log          *slog.Logger
}

func New(endpoint domain.SearchEndpoint, opts ...Option) *Searcher {
	s := &Searcher{
		endpoint:     endpoint,
		weights:      DefaultWeights(),
		primarySize:  defaultPrimarySize,
		fallbackSize: defaultFallbackSize,
		cacheTTL:     defaultCacheTTL,
		log:          slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "search")
	return s
}

// Search returns at most size results ranked by local score. On failure it
// returns no results and an error wrapping [domain.ErrSearchUnavailable].
func (s *Searcher) Search(ctx context.Context, text string, lang domain.Language, size int) ([]domain.RankedResult, error) {
	keywords := query.Keywords(text)
	if len(keywords) == 0 {
		return nil, nil
	}
	if size <= 0 {
		size = s.primarySize
	}

	ctx, span := observe.StartSpan(ctx, "search.Search")
	defer span.End()
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.SearchDuration.Record(ctx, time.Since(start).Seconds())
		}
	}()

	key := cacheKey(lang, size, keywords)
	if s.cache != nil {
		cached, err := s.cache.GetResults(ctx, key)
		switch {
		case err == nil:
			return cached, nil
		case !errors.Is(err, domain.ErrNotFound):
			s.log.WarnContext(ctx, "search cache read failed", "error", err)
		}
	}

	arabic := textnorm.HasArabic(text)

	primary, err := s.phase(ctx, "primary", keywords, keywords, lang, s.primarySize, arabic)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", strings.Join(keywords, " "), err)
	}

	results := primary
	if (len(primary) == 0 || primary[0].Score < s.weights.FallbackBelow) && len(keywords) >= 3 {
		if s.metrics != nil {
			s.metrics.SearchFallbacks.Add(ctx, 1)
		}
		fallback, err := s.phase(ctx, "fallback", keywords[:2], keywords, lang, s.fallbackSize, arabic)
		if err != nil {
			s.log.WarnContext(ctx, "fallback search failed", "error", err)
		} else {
			results = merge(primary, keepAbove(fallback, s.weights.FallbackKeep))
		}
	}

	if len(results) > size {
		results = results[:size]
	}

	if s.cache != nil {
		if err := s.cache.SetResults(ctx, key, results, s.cacheTTL); err != nil {
			s.log.WarnContext(ctx, "search cache write failed", "error", err)
		}
	}
	return results, nil
}

// phase queries the endpoint with terms and scores hits against keywords.
func (s *Searcher) phase(ctx context.Context, name string, terms, keywords []string, lang domain.Language, size int, arabic bool) ([]domain.RankedResult, error) {
	hits, err := s.endpoint.Search(ctx, domain.SearchQuery{
		Text:     strings.Join(terms, " "),
		Language: lang,
		Size:     size,
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordSearchPhase(ctx, name, "error")
		}
		if errors.Is(err, domain.ErrSearchUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrSearchUnavailable, err)
	}
	if s.metrics != nil {
		s.metrics.RecordSearchPhase(ctx, name, "ok")
	}

	ranked := make([]domain.RankedResult, 0, len(hits))
	for _, h := range hits {
		ranked = append(ranked, domain.RankedResult{
			VerseKey:    h.VerseKey,
			Text:        StripMarkup(h.Text),
			Translation: StripMarkup(h.Translation),
			Score:       s.weights.Score(keywords, candidateWords(candidateText(h, arabic), arabic)),
		})
	}
	sortByScore(ranked)
	s.log.DebugContext(ctx, "search phase done", "phase", name, "terms", terms, "hits", len(hits))
	return ranked, nil
}

func candidateText(h domain.SearchHit, arabic bool) string {
	if arabic {
		return cmp.Or(h.Highlighted, h.Text)
	}
	return cmp.Or(h.Translation, h.Highlighted, h.Text)
}

func keepAbove(results []domain.RankedResult, floor float64) []domain.RankedResult {
	out := results[:0:0]
	for _, r := range results {
		if r.Score > floor {
			out = append(out, r)
		}
	}
	return out
}

// merge combines result sets by verse key keeping the higher score.
func merge(a, b []domain.RankedResult) []domain.RankedResult {
	byKey := make(map[domain.VerseRef]int, len(a)+len(b))
	out := make([]domain.RankedResult, 0, len(a)+len(b))
	for _, r := range slices.Concat(a, b) {
		if i, ok := byKey[r.VerseKey]; ok {
			if r.Score > out[i].Score {
				out[i] = r
			}
			continue
		}
		byKey[r.VerseKey] = len(out)
		out = append(out, r)
	}
	sortByScore(out)
	return out
}

func sortByScore(rs []domain.RankedResult) {
	slices.SortStableFunc(rs, func(x, y domain.RankedResult) int {
		return cmp.Compare(y.Score, x.Score)
	})
}

func cacheKey(lang domain.Language, size int, keywords []string) string {
	return string(lang) + "|" + strconv.Itoa(size) + "|" + strings.Join(keywords, " ")
}

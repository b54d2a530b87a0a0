package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/escalopa/quran-navigator/internal/domain"
	"github.com/escalopa/quran-navigator/internal/match"
	"github.com/escalopa/quran-navigator/internal/observe"
	"github.com/escalopa/quran-navigator/internal/playback"
	"github.com/escalopa/quran-navigator/internal/search"
)

// Resolution is the outcome of resolving one piece of user input.
type Resolution struct {
	Intent domain.NavigationIntent
	// Suggestions holds the ranked remote results when the slow path ran.
	Suggestions []domain.RankedResult
}

// Target is a resolved place to start playback.
type Target struct {
	Playlist domain.Playlist
	Start    domain.VerseRef
	Title    string
}

// Option configures a [NavigatorService].
type Option func(*NavigatorService)

// WithVerseLoader enables local matching against the verses of the surah the
// listener is currently in.
func WithVerseLoader(l domain.VerseLoader) Option {
	return func(s *NavigatorService) { s.verses = l }
}

// WithPreferencesStore persists listener preferences.
func WithPreferencesStore(p domain.PreferencesStore) Option {
	return func(s *NavigatorService) { s.prefs = p }
}

// WithSuggestions sets how many remote results are returned. Default: 5.
func WithSuggestions(n int) Option {
	return func(s *NavigatorService) {
		if n > 0 {
			s.suggestions = n
		}
	}
}

// WithDefaultLanguage sets the language of listeners without stored preferences.
func WithDefaultLanguage(lang domain.Language) Option {
	return func(s *NavigatorService) {
		if lang.Valid() {
			s.language = lang
		}
	}
}

// WithDefaultReciter sets the reciter of listeners without stored preferences.
func WithDefaultReciter(id int) Option {
	return func(s *NavigatorService) { s.reciter = id }
}

func WithMetrics(m *observe.Metrics) Option {
	return func(s *NavigatorService) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *NavigatorService) { s.log = l }
}

// NavigatorService turns user input into navigation targets and keeps
// per-listener preferences.
type NavigatorService struct {
	catalog     *domain.Catalog
	matcher     *match.Matcher
	engine      search.Engine
	verses      domain.VerseLoader
	prefs       domain.PreferencesStore
	suggestions int
	reciter     int
	language    domain.Language
	metrics     *observe.Metrics
	log         *slog.Logger

	mu       sync.Mutex
	trackers map[string]*search.Tracker
	local    map[int][]domain.AyahRecord
}

func NewNavigatorService(catalog *domain.Catalog, matcher *match.Matcher, engine search.Engine, opts ...Option) *NavigatorService {
	s := &NavigatorService{
		catalog:     catalog,
		matcher:     matcher,
		engine:      engine,
		suggestions: 5,
		reciter:     7,
		language:    domain.LangEnglish,
		metrics:     observe.DefaultMetrics(),
		log:         slog.Default(),
		trackers:    make(map[string]*search.Tracker),
		local:       make(map[int][]domain.AyahRecord),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "navigator")
	return s
}

// Resolve runs the local matcher and, when it finds nothing, the remote
// search for userID. A newer Resolve for the same user supersedes an older
// one still searching; the older returns [domain.ErrSuperseded].
func (s *NavigatorService) Resolve(ctx context.Context, userID, text string, lang domain.Language, local []domain.AyahRecord) (Resolution, error) {
	ctx, span := observe.StartSpan(ctx, "navigator.Resolve")
	defer span.End()

	intent := s.matcher.Match(text, local)
	if intent.IsMatch() {
		s.record(ctx, span, intent)
		return Resolution{Intent: intent}, nil
	}
	if s.engine == nil {
		s.record(ctx, span, intent)
		return Resolution{Intent: intent}, nil
	}

	results, err := s.tracker(userID).Search(ctx, text, lang, s.suggestions)
	if err != nil {
		if !errors.Is(err, domain.ErrSuperseded) {
			span.RecordError(err)
			observe.Logger(ctx, s.log).Warn("remote search failed", "user_id", userID, "error", err)
		}
		return Resolution{Intent: domain.NoMatch()}, fmt.Errorf("resolve: %w", err)
	}
	if len(results) == 0 {
		s.record(ctx, span, intent)
		return Resolution{Intent: intent}, nil
	}

	top := results[0]
	intent = domain.AyahIntent(top.VerseKey, int(math.Round(top.Score*100)), domain.OriginRemote)
	s.record(ctx, span, intent)
	return Resolution{Intent: intent, Suggestions: results}, nil
}

func (s *NavigatorService) record(ctx context.Context, span trace.Span, intent domain.NavigationIntent) {
	s.metrics.RecordMatch(ctx, intent.Kind.String())
	span.SetAttributes(
		attribute.String("intent.kind", intent.Kind.String()),
		attribute.Int("intent.confidence", intent.Confidence),
	)
}

func (s *NavigatorService) tracker(userID string) *search.Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trackers[userID]
	if !ok {
		t = search.NewTracker(s.engine)
		s.trackers[userID] = t
	}
	return t
}

// Forget cancels any search in flight for userID and drops its state.
func (s *NavigatorService) Forget(userID string) {
	s.mu.Lock()
	t, ok := s.trackers[userID]
	delete(s.trackers, userID)
	s.mu.Unlock()
	if ok {
		t.Cancel()
	}
}

// LocalVerses returns the verses of surah for local matching. Failures are
// logged and yield nil, leaving only the remote path.
func (s *NavigatorService) LocalVerses(ctx context.Context, surah int) []domain.AyahRecord {
	if s.verses == nil || surah < domain.MinSurah || surah > domain.MaxSurah {
		return nil
	}

	s.mu.Lock()
	recs, ok := s.local[surah]
	s.mu.Unlock()
	if ok {
		return recs
	}

	recs, err := s.verses.VersesByChapter(ctx, surah)
	if err != nil {
		s.log.Warn("load local verses", "surah", surah, "error", err)
		return nil
	}
	s.mu.Lock()
	s.local[surah] = recs
	s.mu.Unlock()
	return recs
}

// PlaylistFor turns a matched intent into a playlist and its start verse.
func (s *NavigatorService) PlaylistFor(intent domain.NavigationIntent) (Target, error) {
	switch intent.Kind {
	case domain.IntentSurah:
		pl, err := s.catalog.SurahPlaylist(intent.SurahID)
		if err != nil {
			return Target{}, fmt.Errorf("playlist for surah %d: %w", intent.SurahID, err)
		}
		start, _ := pl.First()
		return Target{Playlist: pl, Start: start, Title: s.surahTitle(intent.SurahID)}, nil

	case domain.IntentAyah:
		pl, err := s.catalog.SurahPlaylist(intent.Verse.Surah)
		if err != nil {
			return Target{}, fmt.Errorf("playlist for %s: %w", intent.Verse, err)
		}
		if !pl.Contains(intent.Verse) {
			return Target{}, fmt.Errorf("playlist for %s: %w", intent.Verse, domain.ErrInvalidVerseRef)
		}
		return Target{Playlist: pl, Start: intent.Verse, Title: s.surahTitle(intent.Verse.Surah)}, nil

	case domain.IntentJuz, domain.IntentJuzAyah:
		pl, err := s.catalog.JuzPlaylist(intent.JuzID)
		if err != nil {
			return Target{}, fmt.Errorf("playlist for juz %d: %w", intent.JuzID, err)
		}
		start, _ := pl.First()
		if intent.Kind == domain.IntentJuzAyah {
			var ok bool
			if start, ok = pl.At(intent.IndexInJuz - 1); !ok {
				return Target{}, fmt.Errorf("juz %d has no verse %d: %w", intent.JuzID, intent.IndexInJuz, domain.ErrInvalidVerseRef)
			}
		}
		return Target{Playlist: pl, Start: start, Title: "Juz " + strconv.Itoa(intent.JuzID)}, nil
	}
	return Target{}, fmt.Errorf("playlist for %s intent: %w", intent.Kind, domain.ErrNotFound)
}

// RangeTarget builds a target bounded to start..end. A range inside one
// surah keeps the whole surah as its playlist.
func (s *NavigatorService) RangeTarget(start, end domain.VerseRef) (Target, *playback.Range, error) {
	pl, err := s.catalog.RangePlaylist(start, end)
	if err == nil && start.Surah == end.Surah {
		pl, err = s.catalog.SurahPlaylist(start.Surah)
	}
	if err != nil {
		return Target{}, nil, fmt.Errorf("range %s-%s: %w", start, end, err)
	}
	title := s.surahTitle(start.Surah)
	if end.Surah != start.Surah {
		title += " - " + s.surahTitle(end.Surah)
	}
	return Target{Playlist: pl, Start: start, Title: title}, &playback.Range{Start: start, End: end}, nil
}

func (s *NavigatorService) surahTitle(id int) string {
	if e, ok := s.catalog.Surah(id); ok {
		return e.SimpleName
	}
	return "Surah " + strconv.Itoa(id)
}

// SessionConfig combines a target with the listener preferences.
func SessionConfig(t Target, rng *playback.Range, p domain.Preferences) playback.Config {
	return playback.Config{
		Playlist:   t.Playlist,
		Range:      rng,
		Title:      t.Title,
		Reciter:    p.Reciter,
		Repeat:     p.Repeat,
		Speed:      p.Speed,
		AutoScroll: p.AutoScroll,
	}
}

// Preferences returns the stored preferences of userID, or the defaults.
func (s *NavigatorService) Preferences(ctx context.Context, userID string) domain.Preferences {
	def := domain.DefaultPreferences(s.reciter)
	def.Language = s.language
	if s.prefs == nil {
		return def
	}
	p, err := s.prefs.GetPreferences(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn("load preferences", "user_id", userID, "error", err)
		}
		return def
	}
	return p
}

// UpdatePreferences applies fn to the preferences of userID and stores them.
func (s *NavigatorService) UpdatePreferences(ctx context.Context, userID string, fn func(*domain.Preferences)) (domain.Preferences, error) {
	p := s.Preferences(ctx, userID)
	fn(&p)

	var errs []error
	if !p.Language.Valid() {
		errs = append(errs, fmt.Errorf("unsupported language %q", p.Language))
	}
	if !domain.ValidRepeat(p.Repeat) {
		errs = append(errs, fmt.Errorf("invalid repeat count %d", p.Repeat))
	}
	if !domain.ValidSpeed(p.Speed) {
		errs = append(errs, fmt.Errorf("invalid speed %.2f", p.Speed))
	}
	if err := errors.Join(errs...); err != nil {
		return p, fmt.Errorf("update preferences: %w", err)
	}

	if s.prefs == nil {
		return p, nil
	}
	if err := s.prefs.SetPreferences(ctx, userID, p); err != nil {
		return p, fmt.Errorf("save preferences: %w", err)
	}
	return p, nil
}

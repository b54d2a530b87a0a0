package quranapi

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/escalopa/quran-navigator/internal/domain"
)

const (
	versesPerPage   = 50
	maxPageFetchers = 4
)

var verseFields = []domain.ScriptVariant{
	domain.ScriptImlaeiSimple,
	domain.ScriptImlaei,
	domain.ScriptUthmaniSimple,
	domain.ScriptUthmani,
}

type versesResponse struct {
	Verses     []verseResult `json:"verses"`
	Pagination pagination    `json:"pagination"`
}

type verseResult struct {
	VerseKey          string              `json:"verse_key"`
	TextImlaeiSimple  string              `json:"text_imlaei_simple"`
	TextImlaei        string              `json:"text_imlaei"`
	TextUthmaniSimple string              `json:"text_uthmani_simple"`
	TextUthmani       string              `json:"text_uthmani"`
	Translations      []translationResult `json:"translations"`
}

// VersesByChapter returns all verses of surah in order. The first page gives
// the page count; the rest are fetched concurrently.
func (c *Client) VersesByChapter(ctx context.Context, surah int) ([]domain.AyahRecord, error) {
	if surah < domain.MinSurah || surah > domain.MaxSurah {
		return nil, fmt.Errorf("verses of surah %d: %w", surah, domain.ErrInvalidVerseRef)
	}

	first, err := c.versesPage(ctx, surah, 1)
	if err != nil {
		return nil, fmt.Errorf("verses of surah %d: %w", surah, err)
	}

	pages := make([][]verseResult, max(first.Pagination.TotalPages, 1))
	pages[0] = first.Verses

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPageFetchers)
	for i := 1; i < len(pages); i++ {
		g.Go(func() error {
			resp, err := c.versesPage(gctx, surah, i+1)
			if err != nil {
				return err
			}
			pages[i] = resp.Verses
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("verses of surah %d: %w", surah, err)
	}

	var recs []domain.AyahRecord
	for _, page := range pages {
		for _, v := range page {
			rec, ok := mapVerse(v, surah)
			if !ok {
				c.log.Debug("skipping verse", "verse_key", v.VerseKey)
				continue
			}
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].VerseKey.Before(recs[j].VerseKey) })
	return recs, nil
}

func (c *Client) versesPage(ctx context.Context, surah, page int) (versesResponse, error) {
	fields := make([]string, len(verseFields))
	for i, f := range verseFields {
		fields[i] = string(f)
	}

	query := url.Values{}
	query.Set("fields", strings.Join(fields, ","))
	query.Set("translations", strconv.Itoa(c.translation))
	query.Set("per_page", strconv.Itoa(versesPerPage))
	query.Set("page", strconv.Itoa(page))

	var resp versesResponse
	err := c.getJSON(ctx, "verses", fmt.Sprintf("/verses/by_chapter/%d", surah), query, &resp)
	return resp, err
}

func mapVerse(v verseResult, surah int) (domain.AyahRecord, bool) {
	ref, err := domain.ParseVerseRef(v.VerseKey)
	if err != nil || ref.Surah != surah {
		return domain.AyahRecord{}, false
	}
	text := make(map[domain.ScriptVariant]string, 5)
	for variant, s := range map[domain.ScriptVariant]string{
		domain.ScriptImlaeiSimple:  v.TextImlaeiSimple,
		domain.ScriptImlaei:        v.TextImlaei,
		domain.ScriptUthmaniSimple: v.TextUthmaniSimple,
		domain.ScriptUthmani:       v.TextUthmani,
	} {
		if s != "" {
			text[variant] = s
		}
	}
	if len(v.Translations) > 0 && v.Translations[0].Text != "" {
		text[domain.ScriptTranslation] = v.Translations[0].Text
	}
	if len(text) == 0 {
		return domain.AyahRecord{}, false
	}
	return domain.AyahRecord{VerseKey: ref, Text: text}, true
}

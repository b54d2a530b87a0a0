package quranapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/escalopa/quran-navigator/internal/domain"
)

type searchResponse struct {
	Search struct {
		Query        string         `json:"query"`
		TotalResults int            `json:"total_results"`
		Results      []searchResult `json:"results"`
	} `json:"search"`
}

type searchResult struct {
	VerseKey     string              `json:"verse_key"`
	Text         string              `json:"text"`
	Highlighted  *string             `json:"highlighted"`
	Translations []translationResult `json:"translations"`
}

type translationResult struct {
	Text       string `json:"text"`
	ResourceID int    `json:"resource_id"`
}

// Search runs a full-text search and returns the hits with valid verse keys.
func (c *Client) Search(ctx context.Context, q domain.SearchQuery) ([]domain.SearchHit, error) {
	query := url.Values{}
	query.Set("q", q.Text)
	query.Set("size", strconv.Itoa(q.Size))
	query.Set("page", "1")
	if q.Language != "" {
		query.Set("language", string(q.Language))
	}

	var resp searchResponse
	if err := c.getJSON(ctx, "search", "/search", query, &resp); err != nil {
		return nil, fmt.Errorf("search %q: %w", q.Text, err)
	}

	hits := make([]domain.SearchHit, 0, len(resp.Search.Results))
	for _, r := range resp.Search.Results {
		ref, err := domain.ParseVerseRef(r.VerseKey)
		if err != nil {
			c.log.Debug("skipping search hit", "verse_key", r.VerseKey, "error", err)
			continue
		}
		hit := domain.SearchHit{VerseKey: ref, Text: r.Text}
		if r.Highlighted != nil {
			hit.Highlighted = *r.Highlighted
		}
		if len(r.Translations) > 0 {
			hit.Translation = r.Translations[0].Text
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

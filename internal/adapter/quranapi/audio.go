package quranapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/escalopa/quran-navigator/internal/domain"
)

const clipsPerPage = 300

type audioFilesResponse struct {
	AudioFiles []struct {
		VerseKey string `json:"verse_key"`
		URL      string `json:"url"`
	} `json:"audio_files"`
	Pagination pagination `json:"pagination"`
}

type pagination struct {
	CurrentPage  int  `json:"current_page"`
	NextPage     *int `json:"next_page"`
	TotalPages   int  `json:"total_pages"`
	TotalRecords int  `json:"total_records"`
}

// Clip resolves the audio of ref for reciter. Audio file lists are fetched
// per chapter once and cached.
func (c *Client) Clip(ctx context.Context, reciter int, ref domain.VerseRef) (domain.Clip, error) {
	if !ref.Valid() {
		return domain.Clip{}, fmt.Errorf("clip %s: %w", ref, domain.ErrInvalidVerseRef)
	}

	urls, err := c.chapterClips(ctx, chapterKey{reciter: reciter, surah: ref.Surah})
	if err != nil {
		if isNotFound(err) {
			return domain.Clip{}, fmt.Errorf("clip %s: %w", ref, domain.ErrClipUnavailable)
		}
		return domain.Clip{}, fmt.Errorf("clip %s: %w: %w", ref, domain.ErrDecodeOrNetwork, err)
	}

	u, ok := urls[ref]
	if !ok {
		return domain.Clip{}, fmt.Errorf("clip %s: %w", ref, domain.ErrClipUnavailable)
	}
	clip := domain.Clip{Key: ref, URL: u}
	if c.backupTmpl != "" {
		clip.BackupURL = fmt.Sprintf(c.backupTmpl, reciter, ref.FileCode())
	}
	return clip, nil
}

func (c *Client) chapterClips(ctx context.Context, key chapterKey) (map[domain.VerseRef]string, error) {
	c.mu.RLock()
	urls, ok := c.clips[key]
	c.mu.RUnlock()
	if ok {
		return urls, nil
	}

	v, err, _ := c.chapters.Do(fmt.Sprintf("%d/%d", key.reciter, key.surah), func() (any, error) {
		urls, err := c.fetchChapterClips(context.WithoutCancel(ctx), key)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.clips[key] = urls
		c.mu.Unlock()
		return urls, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[domain.VerseRef]string), nil
}

func (c *Client) fetchChapterClips(ctx context.Context, key chapterKey) (map[domain.VerseRef]string, error) {
	urls := make(map[domain.VerseRef]string)
	path := fmt.Sprintf("/recitations/%d/by_chapter/%d", key.reciter, key.surah)

	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("per_page", strconv.Itoa(clipsPerPage))
		query.Set("page", strconv.Itoa(page))

		var resp audioFilesResponse
		if err := c.getJSON(ctx, "recitations", path, query, &resp); err != nil {
			return nil, err
		}
		for _, f := range resp.AudioFiles {
			ref, err := domain.ParseVerseRef(f.VerseKey)
			if err != nil || ref.Surah != key.surah || f.URL == "" {
				c.log.Debug("skipping audio file", "verse_key", f.VerseKey, "url", f.URL)
				continue
			}
			urls[ref] = c.resolveAudioURL(f.URL)
		}
		if resp.Pagination.NextPage == nil || *resp.Pagination.NextPage <= page {
			break
		}
	}
	return urls, nil
}

func (c *Client) resolveAudioURL(u string) string {
	switch {
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		return u
	case strings.HasPrefix(u, "//"):
		return "https:" + u
	default:
		return c.audioBase + strings.TrimLeft(u, "/")
	}
}

// memBuffer holds a downloaded clip until released.
type memBuffer struct {
	url  string
	mu   sync.Mutex
	data []byte
}

func (b *memBuffer) URL() string { return b.url }

func (b *memBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

func (b *memBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = nil
}

// Fetch downloads a clip into memory.
func (c *Client) Fetch(ctx context.Context, clipURL string) (domain.Buffer, error) {
	body, err := c.get(ctx, "audio", clipURL, false)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w: %w", clipURL, domain.ErrDecodeOrNetwork, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("fetch %s: empty body: %w", clipURL, domain.ErrDecodeOrNetwork)
	}
	return &memBuffer{url: clipURL, data: body}, nil
}

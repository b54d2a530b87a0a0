package domain

import (
	"context"
	"time"
)

// SearchEndpoint defines the remote full-text verse search
type SearchEndpoint interface {
	// Search runs one query against the endpoint and returns validated hits
	Search(ctx context.Context, q SearchQuery) ([]SearchHit, error)
}

// VerseLoader loads verse texts used for local matching
type VerseLoader interface {
	// VersesByChapter returns all verses of a surah in order
	VersesByChapter(ctx context.Context, surah int) ([]AyahRecord, error)
}

// Clip is a resolved audio location for one verse.
type Clip struct {
	Key       VerseRef
	URL       string
	BackupURL string
}

// ClipSource resolves verses to audio clips
type ClipSource interface {
	// Clip returns the clip for ref, or ErrClipUnavailable
	Clip(ctx context.Context, reciter int, ref VerseRef) (Clip, error)
}

// Buffer is a fetched clip held in memory until released.
type Buffer interface {
	URL() string
	Bytes() []byte
	// Release frees the buffer. Safe to call more than once.
	Release()
}

// Fetcher downloads clip bytes
type Fetcher interface {
	// Fetch downloads url into a Buffer, or fails with ErrDecodeOrNetwork
	Fetch(ctx context.Context, url string) (Buffer, error)
}

// PreferencesStore persists per-user playback preferences
type PreferencesStore interface {
	// GetPreferences returns stored preferences or ErrNotFound
	GetPreferences(ctx context.Context, userID string) (Preferences, error)

	// SetPreferences stores preferences for a user
	SetPreferences(ctx context.Context, userID string, p Preferences) error
}

// SearchCache caches ranked search results
type SearchCache interface {
	// GetResults returns cached results or ErrNotFound
	GetResults(ctx context.Context, key string) ([]RankedResult, error)

	// SetResults caches results for ttl
	SetResults(ctx context.Context, key string, results []RankedResult, ttl time.Duration) error
}

// I18nPort defines the interface for internationalization
type I18nPort interface {
	// Get retrieves a translated message
	Get(lang Language, key string, args ...any) string

	// GetSurahName retrieves the localized name of a Surah
	GetSurahName(lang Language, surahNumber int) string
}

// BotPort defines the interface for the bot adapter
type BotPort interface {
	// Start starts the bot
	Start(ctx context.Context) error

	// Stop stops the bot
	Stop() error
}

// Package playback plays a sequence of per-verse audio clips on a single
// output with look-ahead buffering, repetition, range bounds and media
// session controls.
//
// A [Player] owns at most one live [Session]. Acquiring a new session tears
// down the previous one first: its output is closed, its in-flight preload is
// canceled and every buffer it holds is released.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/escalopa/quran-navigator/internal/domain"
	"github.com/escalopa/quran-navigator/internal/observe"
)

const (
	defaultNearEnd = 250 * time.Millisecond
	nearEndGrace   = 500 * time.Millisecond
)

// Config describes a listening session.
type Config struct {
	// Playlist gives document order, usually a whole surah or juz.
	Playlist domain.Playlist
	// Range optionally bounds playback inside the playlist.
	Range *Range
	// Title names the playlist in media metadata.
	Title      string
	Reciter    int
	Repeat     int
	Speed      float64
	AutoScroll bool
}

func (c *Config) validate() error {
	var errs []error
	if c.Playlist.Len() == 0 {
		errs = append(errs, errors.New("playlist is empty"))
	}
	if c.Range != nil {
		si, okStart := c.Playlist.IndexOf(c.Range.Start)
		ei, okEnd := c.Playlist.IndexOf(c.Range.End)
		switch {
		case !okStart || !okEnd:
			errs = append(errs, fmt.Errorf("range %s-%s outside playlist", c.Range.Start, c.Range.End))
		case ei < si:
			errs = append(errs, fmt.Errorf("range end %s before start %s", c.Range.End, c.Range.Start))
		}
	}
	if c.Repeat == 0 {
		c.Repeat = 1
	}
	if !domain.ValidRepeat(c.Repeat) {
		errs = append(errs, fmt.Errorf("invalid repeat count %d", c.Repeat))
	}
	if c.Speed == 0 {
		c.Speed = 1
	}
	if !domain.ValidSpeed(c.Speed) {
		errs = append(errs, fmt.Errorf("invalid speed %.2f", c.Speed))
	}
	return errors.Join(errs...)
}

// Option is a functional option for configuring a [Player].
type Option func(*Player)

// WithMediaSession publishes now-playing state and controls to m.
func WithMediaSession(m MediaSession) Option {
	return func(p *Player) { p.media = m }
}

// WithScroller enables the auto-scroll side effect.
func WithScroller(s Scroller) Option {
	return func(p *Player) { p.scroller = s }
}

func WithMetrics(m *observe.Metrics) Option {
	return func(p *Player) { p.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Player) { p.log = l }
}

// WithNearEnd sets how close to the end a progress event must be to arm the
// end-of-clip fallback timer. Default: 250ms.
func WithNearEnd(d time.Duration) Option {
	return func(p *Player) {
		if d > 0 {
			p.nearEnd = d
		}
	}
}

// Player is the single owner of the "now playing" slot.
type Player struct {
	clips     domain.ClipSource
	fetcher   domain.Fetcher
	newOutput func() Output
	media     MediaSession
	scroller  Scroller
	metrics   *observe.Metrics
	log       *slog.Logger
	nearEnd   time.Duration
	supported bool

	mu      sync.Mutex
	current *Session
}

// NewPlayer returns a Player creating one output per session with newOutput.
func NewPlayer(clips domain.ClipSource, fetcher domain.Fetcher, newOutput func() Output, opts ...Option) *Player {
	p := &Player{
		clips:     clips,
		fetcher:   fetcher,
		newOutput: newOutput,
		metrics:   observe.DefaultMetrics(),
		log:       slog.Default(),
		nearEnd:   defaultNearEnd,
	}
	for _, o := range opts {
		o(p)
	}
	p.supported = p.media != nil && p.media.Supported()
	p.log = p.log.With("component", "playback")
	return p
}

// Supported reports whether the media session host accepts metadata and
// controls. Checked once at construction.
func (p *Player) Supported() bool {
	return p.supported
}

// Acquire tears down the current session, if any, and starts a new idle one.
func (p *Player) Acquire(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		p.current.teardown()
		p.current = nil
	}

	s := newSession(p, cfg, uuid.NewString())
	p.current = s
	p.metrics.ActiveSessions.Add(s.ctx, 1)
	s.log.Debug("session acquired", "playlist", cfg.Playlist.Len(), "reciter", cfg.Reciter)
	return s, nil
}

// Current returns the live session or nil.
func (p *Player) Current() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Release ends the live session, if any.
func (p *Player) Release() {
	p.mu.Lock()
	s := p.current
	p.current = nil
	p.mu.Unlock()
	if s != nil {
		s.teardown()
	}
}

func (p *Player) detach(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == s {
		p.current = nil
	}
}

func (p *Player) endSession(ctx context.Context) {
	p.metrics.ActiveSessions.Add(ctx, -1)
}

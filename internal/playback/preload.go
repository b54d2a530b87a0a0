package playback

import (
	"context"

	"github.com/escalopa/quran-navigator/internal/domain"
)

// preload is one look-ahead fetch of the verse after the current one.
// buf is set under the session lock once the fetch completes.
type preload struct {
	key    domain.VerseRef
	seq    uint64
	cancel context.CancelFunc
	buf    domain.Buffer
}

// startPreloadLocked replaces any pending preload with one for the verse
// after the current one, if there is one within bounds.
func (s *Session) startPreloadLocked() {
	s.cancelPreloadLocked()
	if s.player.fetcher == nil {
		return
	}
	next, ok := s.nextInBoundsLocked(s.current)
	if !ok {
		return
	}

	s.preloadSeq++
	ctx, cancel := context.WithCancel(s.ctx)
	p := &preload{key: next, seq: s.preloadSeq, cancel: cancel}
	s.preload = p
	go s.runPreload(ctx, p)
}

func (s *Session) runPreload(ctx context.Context, p *preload) {
	defer p.cancel()

	clip, err := s.player.clips.Clip(ctx, s.reciter, p.key)
	var buf domain.Buffer
	if err == nil {
		buf, err = s.player.fetcher.Fetch(ctx, clip.URL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.preload != p {
		release(buf)
		s.player.metrics.RecordPreload(s.ctx, "discarded")
		return
	}
	if err != nil {
		s.preload = nil
		s.player.metrics.RecordPreload(s.ctx, "failed")
		s.log.Debug("preload failed", "key", p.key.String(), "seq", p.seq, "error", err)
		return
	}
	p.buf = buf
	s.player.metrics.RecordPreload(s.ctx, "ready")
}

// takePreloadLocked detaches the pending preload. Its buffer is handed back
// only when it is ready, matches key and use is set; otherwise it is
// released. An in-flight fetch is canceled and releases its own result.
func (s *Session) takePreloadLocked(key domain.VerseRef, use bool) domain.Buffer {
	p := s.preload
	if p == nil {
		return nil
	}
	s.preload = nil
	p.cancel()
	if p.buf == nil {
		return nil
	}
	if use && p.key == key {
		return p.buf
	}
	p.buf.Release()
	s.player.metrics.RecordPreload(s.ctx, "discarded")
	return nil
}

func (s *Session) cancelPreloadLocked() {
	s.takePreloadLocked(domain.VerseRef{}, false)
}

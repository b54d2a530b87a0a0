package search

import (
	"context"
	"sync"

	"github.com/escalopa/quran-navigator/internal/domain"
)

// Engine is the search operation wrapped by a [Tracker].
type Engine interface {
	Search(ctx context.Context, text string, lang domain.Language, size int) ([]domain.RankedResult, error)
}

// Tracker serializes searches of one caller so that only the latest request
// delivers results. Starting a search cancels the previous one; a request
// that completes after being superseded returns [domain.ErrSuperseded].
type Tracker struct {
	engine Engine

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

func NewTracker(e Engine) *Tracker {
	return &Tracker{engine: e}
}

func (t *Tracker) Search(ctx context.Context, text string, lang domain.Language, size int) ([]domain.RankedResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.seq++
	id := t.seq
	t.cancel = cancel
	t.mu.Unlock()

	results, err := t.engine.Search(ctx, text, lang, size)

	t.mu.Lock()
	defer t.mu.Unlock()
	if id != t.seq {
		return nil, domain.ErrSuperseded
	}
	t.cancel = nil
	return results, err
}

// Cancel abandons the in-flight search, if any.
func (t *Tracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.seq++
}

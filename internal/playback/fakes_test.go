package playback

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/escalopa/quran-navigator/internal/domain"
)

type fakeOutput struct {
	mu        sync.Mutex
	loads     []Source
	plays     int
	seeks     int
	pauses    int
	resumes   int
	speed     float64
	closed    bool
	cb        func(Event)
	LoadFunc  func(src Source) error
	PauseFunc func() error
}

func (o *fakeOutput) Load(src Source, onEvent func(Event)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.LoadFunc != nil {
		if err := o.LoadFunc(src); err != nil {
			return err
		}
	}
	o.loads = append(o.loads, src)
	o.cb = onEvent
	return nil
}

func (o *fakeOutput) Play(speed float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.plays++
	o.speed = speed
	return nil
}

func (o *fakeOutput) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pauses++
	if o.PauseFunc != nil {
		return o.PauseFunc()
	}
	return nil
}

func (o *fakeOutput) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resumes++
	return nil
}

func (o *fakeOutput) SeekStart(onEvent func(Event)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seeks++
	o.cb = onEvent
	return nil
}

func (o *fakeOutput) SetSpeed(speed float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.speed = speed
	return nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

// emit delivers ev to the callback registered for the current media.
func (o *fakeOutput) emit(ev Event) {
	o.mu.Lock()
	cb := o.cb
	o.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

func (o *fakeOutput) handler() func(Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cb
}

func (o *fakeOutput) loadedKeys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	keys := make([]string, 0, len(o.loads))
	for _, src := range o.loads {
		keys = append(keys, src.Key.String())
	}
	return keys
}

func (o *fakeOutput) lastLoad() Source {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.loads) == 0 {
		return Source{}
	}
	return o.loads[len(o.loads)-1]
}

func (o *fakeOutput) counts() (seeks, pauses, resumes int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.seeks, o.pauses, o.resumes
}

func (o *fakeOutput) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *fakeOutput) currentSpeed() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.speed
}

type fakeClips struct {
	mu          sync.Mutex
	unavailable map[domain.VerseRef]bool
	backup      bool
	calls       int
	ClipFunc    func(ctx context.Context, ref domain.VerseRef) (domain.Clip, error)
}

func clipURL(ref domain.VerseRef) string {
	return fmt.Sprintf("https://cdn.test/7/%s.mp3", ref.FileCode())
}

func (c *fakeClips) Clip(ctx context.Context, _ int, ref domain.VerseRef) (domain.Clip, error) {
	c.mu.Lock()
	c.calls++
	fn := c.ClipFunc
	missing := c.unavailable[ref]
	backup := c.backup
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, ref)
	}
	if missing {
		return domain.Clip{}, fmt.Errorf("clip %s: %w", ref, domain.ErrClipUnavailable)
	}
	clip := domain.Clip{Key: ref, URL: clipURL(ref)}
	if backup {
		clip.BackupURL = "https://mirror.test/7/" + ref.FileCode() + ".mp3"
	}
	return clip, nil
}

type fakeBuffer struct {
	url      string
	released atomic.Int32
}

func (b *fakeBuffer) URL() string      { return b.url }
func (b *fakeBuffer) Bytes() []byte    { return []byte("ID3") }
func (b *fakeBuffer) Release()         { b.released.Add(1) }
func (b *fakeBuffer) isReleased() bool { return b.released.Load() > 0 }

// fakeFetcher returns buffers immediately unless a gate is registered for the
// URL, in which case Fetch waits for the gate regardless of ctx.
type fakeFetcher struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	buffers map[string]*fakeBuffer
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		gates:   make(map[string]chan struct{}),
		buffers: make(map[string]*fakeBuffer),
	}
}

func (f *fakeFetcher) gate(url string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[url] = ch
	return ch
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (domain.Buffer, error) {
	f.mu.Lock()
	gate := f.gates[url]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	b := &fakeBuffer{url: url}
	f.mu.Lock()
	f.buffers[url] = b
	f.mu.Unlock()
	return b, nil
}

func (f *fakeFetcher) buffer(url string) *fakeBuffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buffers[url]
}

type fakeMedia struct {
	mu       sync.Mutex
	meta     []MediaMetadata
	handlers MediaHandlers
	states   []MediaPlaybackState
}

func (m *fakeMedia) Supported() bool { return true }

func (m *fakeMedia) SetMetadata(md MediaMetadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = append(m.meta, md)
}

func (m *fakeMedia) SetHandlers(h MediaHandlers) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = h
}

func (m *fakeMedia) SetPlaybackState(s MediaPlaybackState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, s)
}

func (m *fakeMedia) lastState() MediaPlaybackState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.states) == 0 {
		return ""
	}
	return m.states[len(m.states)-1]
}

type fakeScroller struct {
	mu   sync.Mutex
	refs []domain.VerseRef
}

func (s *fakeScroller) ScrollTo(ref domain.VerseRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs = append(s.refs, ref)
}

func (s *fakeScroller) last() domain.VerseRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.refs) == 0 {
		return domain.VerseRef{}
	}
	return s.refs[len(s.refs)-1]
}

type outputs struct {
	mu   sync.Mutex
	list []*fakeOutput
}

func (o *outputs) new() Output {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := &fakeOutput{}
	o.list = append(o.list, out)
	return out
}

func (o *outputs) at(i int) *fakeOutput {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.list[i]
}

func ref(surah, ayah int) domain.VerseRef {
	return domain.VerseRef{Surah: surah, Ayah: ayah}
}

// fatiha is the playlist of surah 1.
func fatiha() domain.Playlist {
	keys := make([]domain.VerseRef, 0, 7)
	for a := 1; a <= 7; a++ {
		keys = append(keys, ref(1, a))
	}
	return domain.NewPlaylist(keys)
}

func newTestSession(t *testing.T, clips domain.ClipSource, fetcher domain.Fetcher, cfg Config, opts ...Option) (*Session, *fakeOutput) {
	t.Helper()
	outs := &outputs{}
	p := NewPlayer(clips, fetcher, outs.new, opts...)
	if cfg.Playlist.Len() == 0 {
		cfg.Playlist = fatiha()
	}
	s, err := p.Acquire(cfg)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	t.Cleanup(s.Release)
	return s, outs.at(0)
}

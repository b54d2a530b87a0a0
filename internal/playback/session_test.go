package playback

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escalopa/quran-navigator/internal/domain"
)

func TestSession_RepeatPlaysEachVerseExactlyN(t *testing.T) {
	t.Parallel()

	s, out := newTestSession(t, &fakeClips{}, nil, Config{Repeat: 3})
	ctx := context.Background()
	require.NoError(t, s.Play(ctx, ref(1, 1), false))

	out.emit(Event{Kind: EventEnded})
	out.emit(Event{Kind: EventEnded})
	seeks, _, _ := out.counts()
	assert.Equal(t, 2, seeks)
	assert.Equal(t, []string{"1:1"}, out.loadedKeys())

	out.emit(Event{Kind: EventEnded})
	assert.Equal(t, []string{"1:1", "1:2"}, out.loadedKeys())
	snap := s.Snapshot()
	assert.Equal(t, ref(1, 2), snap.Current)
	assert.Equal(t, 0, snap.RepeatsDone)
	assert.Equal(t, StatePlaying, snap.State)
}

func TestSession_RepeatForever(t *testing.T) {
	t.Parallel()

	s, out := newTestSession(t, &fakeClips{}, nil, Config{Repeat: domain.RepeatForever})
	require.NoError(t, s.Play(context.Background(), ref(1, 7), false))

	for range 5 {
		out.emit(Event{Kind: EventEnded})
	}
	seeks, _, _ := out.counts()
	assert.Equal(t, 5, seeks)
	assert.Equal(t, ref(1, 7), s.Snapshot().Current)
	assert.Equal(t, StatePlaying, s.Snapshot().State)
}

func TestSession_SetRepeatAppliesAtNextEnd(t *testing.T) {
	t.Parallel()

	s, out := newTestSession(t, &fakeClips{}, nil, Config{})
	require.NoError(t, s.Play(context.Background(), ref(1, 1), false))
	require.NoError(t, s.SetRepeat(2))
	require.Error(t, s.SetRepeat(0))

	out.emit(Event{Kind: EventEnded})
	seeks, _, _ := out.counts()
	assert.Equal(t, 1, seeks)
	assert.Equal(t, ref(1, 1), s.Snapshot().Current)
}

func TestSession_RangeBounds(t *testing.T) {
	t.Parallel()

	rng := &Range{Start: ref(1, 2), End: ref(1, 4)}
	s, out := newTestSession(t, &fakeClips{}, nil, Config{Range: rng})
	ctx := context.Background()

	require.ErrorIs(t, s.Play(ctx, ref(1, 6), false), domain.ErrInvalidVerseRef)
	require.ErrorIs(t, s.Play(ctx, ref(2, 1), false), domain.ErrInvalidVerseRef)

	require.NoError(t, s.Play(ctx, ref(1, 2), false))
	require.NoError(t, s.PlayPrevious(ctx))
	assert.Equal(t, []string{"1:2"}, out.loadedKeys())

	out.emit(Event{Kind: EventEnded})
	out.emit(Event{Kind: EventEnded})
	out.emit(Event{Kind: EventEnded})
	assert.Equal(t, []string{"1:2", "1:3", "1:4"}, out.loadedKeys())
	assert.Equal(t, StateRangeBoundary, s.Snapshot().State)

	require.NoError(t, s.PlayNext(ctx))
	assert.Len(t, out.loadedKeys(), 3)
	assert.Equal(t, StateRangeBoundary, s.Snapshot().State)
}

func TestSession_PlaylistEnd(t *testing.T) {
	t.Parallel()

	s, out := newTestSession(t, &fakeClips{}, nil, Config{})
	ctx := context.Background()
	require.NoError(t, s.Play(ctx, ref(1, 7), false))

	out.emit(Event{Kind: EventEnded})
	assert.Equal(t, StateEnded, s.Snapshot().State)

	// playing the ended verse again restarts it
	require.NoError(t, s.Play(ctx, ref(1, 7), false))
	seeks, _, _ := out.counts()
	assert.Equal(t, 1, seeks)
	assert.Equal(t, StatePlaying, s.Snapshot().State)
	assert.Len(t, out.loadedKeys(), 1)
}

func TestSession_SameKeyToggles(t *testing.T) {
	t.Parallel()

	s, out := newTestSession(t, &fakeClips{}, nil, Config{})
	ctx := context.Background()

	require.NoError(t, s.Play(ctx, ref(1, 3), false))
	require.NoError(t, s.Play(ctx, ref(1, 3), false))
	assert.Equal(t, StatePaused, s.Snapshot().State)

	require.NoError(t, s.Play(ctx, ref(1, 3), false))
	assert.Equal(t, StatePlaying, s.Snapshot().State)

	_, pauses, resumes := out.counts()
	assert.Equal(t, 1, pauses)
	assert.Equal(t, 1, resumes)
	assert.Equal(t, []string{"1:3"}, out.loadedKeys())
}

func TestSession_StaleEventsIgnored(t *testing.T) {
	t.Parallel()

	s, out := newTestSession(t, &fakeClips{}, nil, Config{})
	ctx := context.Background()

	require.NoError(t, s.Play(ctx, ref(1, 1), false))
	stale := out.handler()
	require.NoError(t, s.Play(ctx, ref(1, 5), false))

	stale(Event{Kind: EventEnded})
	stale(Event{Kind: EventError})
	assert.Equal(t, []string{"1:1", "1:5"}, out.loadedKeys())
	assert.Equal(t, ref(1, 5), s.Snapshot().Current)
	assert.Equal(t, StatePlaying, s.Snapshot().State)
}

func TestSession_NextPrevious(t *testing.T) {
	t.Parallel()

	s, out := newTestSession(t, &fakeClips{}, nil, Config{})
	ctx := context.Background()

	require.NoError(t, s.PlayPrevious(ctx))
	assert.Empty(t, out.loadedKeys())

	require.NoError(t, s.PlayNext(ctx))
	require.NoError(t, s.PlayNext(ctx))
	require.NoError(t, s.PlayPrevious(ctx))
	require.NoError(t, s.PlayPrevious(ctx))
	assert.Equal(t, []string{"1:1", "1:2", "1:1"}, out.loadedKeys())
}

func TestSession_NearEndTimerAdvances(t *testing.T) {
	t.Parallel()

	s, out := newTestSession(t, &fakeClips{}, nil, Config{}, WithNearEnd(250*time.Millisecond))
	require.NoError(t, s.Play(context.Background(), ref(1, 1), false))

	out.emit(Event{Kind: EventProgress, Position: 100 * time.Millisecond, Duration: time.Second})
	out.emit(Event{Kind: EventProgress, Position: 950 * time.Millisecond, Duration: time.Second})

	require.Eventually(t, func() bool {
		return len(out.loadedKeys()) == 2
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, ref(1, 2), s.Snapshot().Current)
}

func TestSession_NearEndAndEndedAdvanceOnce(t *testing.T) {
	t.Parallel()

	s, out := newTestSession(t, &fakeClips{}, nil, Config{}, WithNearEnd(250*time.Millisecond))
	require.NoError(t, s.Play(context.Background(), ref(1, 1), false))

	out.emit(Event{Kind: EventProgress, Position: 950 * time.Millisecond, Duration: time.Second})
	out.emit(Event{Kind: EventEnded})
	assert.Equal(t, []string{"1:1", "1:2"}, out.loadedKeys())

	assert.Never(t, func() bool {
		return len(out.loadedKeys()) > 2
	}, 900*time.Millisecond, 50*time.Millisecond)
	assert.Equal(t, ref(1, 2), s.Snapshot().Current)
}

func TestSession_BackupURLTriedOnce(t *testing.T) {
	t.Parallel()

	s, out := newTestSession(t, &fakeClips{backup: true}, nil, Config{})
	require.NoError(t, s.Play(context.Background(), ref(1, 1), false))

	out.emit(Event{Kind: EventError, Err: assert.AnError})
	last := out.lastLoad()
	assert.Equal(t, ref(1, 1), last.Key)
	assert.Contains(t, last.URL, "mirror.test")
	assert.Equal(t, StatePlaying, s.Snapshot().State)

	out.emit(Event{Kind: EventError, Err: assert.AnError})
	assert.Equal(t, []string{"1:1", "1:1", "1:2"}, out.loadedKeys())
	assert.Contains(t, out.lastLoad().URL, "cdn.test")
}

func TestSession_LoadFailureFallsBackToBackup(t *testing.T) {
	t.Parallel()

	s, out := newTestSession(t, &fakeClips{backup: true}, nil, Config{})
	out.LoadFunc = func(src Source) error {
		if src.URL == clipURL(src.Key) {
			return assert.AnError
		}
		return nil
	}

	require.NoError(t, s.Play(context.Background(), ref(1, 2), false))
	assert.Contains(t, out.lastLoad().URL, "mirror.test")
	assert.Equal(t, StatePlaying, s.Snapshot().State)
}

func TestSession_AutoAdvanceSkipsUnavailable(t *testing.T) {
	t.Parallel()

	clips := &fakeClips{unavailable: map[domain.VerseRef]bool{ref(1, 2): true, ref(1, 3): true}}
	s, out := newTestSession(t, clips, nil, Config{})
	ctx := context.Background()

	require.NoError(t, s.Play(ctx, ref(1, 1), false))
	out.emit(Event{Kind: EventEnded})
	assert.Equal(t, []string{"1:1", "1:4"}, out.loadedKeys())

	err := s.Play(ctx, ref(1, 2), false)
	require.ErrorIs(t, err, domain.ErrClipUnavailable)
	assert.Equal(t, StateIdle, s.Snapshot().State)
}

func TestSession_AutoAdvanceStopsWhenNothingLeft(t *testing.T) {
	t.Parallel()

	clips := &fakeClips{unavailable: map[domain.VerseRef]bool{ref(1, 7): true}}
	s, out := newTestSession(t, clips, nil, Config{})

	require.NoError(t, s.Play(context.Background(), ref(1, 6), false))
	out.emit(Event{Kind: EventEnded})
	assert.Equal(t, StateEnded, s.Snapshot().State)
	assert.Equal(t, []string{"1:6"}, out.loadedKeys())
}

func TestSession_AutoAdvanceSkipsLoadFailure(t *testing.T) {
	t.Parallel()

	s, out := newTestSession(t, &fakeClips{}, nil, Config{})
	out.LoadFunc = func(src Source) error {
		if src.Key == ref(1, 2) {
			return assert.AnError
		}
		return nil
	}
	ctx := context.Background()

	require.NoError(t, s.Play(ctx, ref(1, 1), false))
	out.emit(Event{Kind: EventEnded})

	snap := s.Snapshot()
	assert.Equal(t, ref(1, 3), snap.Current)
	assert.Equal(t, StatePlaying, snap.State)
	assert.Equal(t, []string{"1:1", "1:3"}, out.loadedKeys())

	err := s.Play(ctx, ref(1, 2), false)
	require.ErrorIs(t, err, domain.ErrDecodeOrNetwork)
	assert.Equal(t, StateIdle, s.Snapshot().State)
}

func TestSession_AutoAdvanceSkipsClipNetworkError(t *testing.T) {
	t.Parallel()

	clips := &fakeClips{}
	clips.ClipFunc = func(_ context.Context, r domain.VerseRef) (domain.Clip, error) {
		if r == ref(1, 7) {
			return domain.Clip{}, fmt.Errorf("clip %s: %w", r, domain.ErrDecodeOrNetwork)
		}
		return domain.Clip{Key: r, URL: clipURL(r)}, nil
	}
	s, out := newTestSession(t, clips, nil, Config{})

	require.NoError(t, s.Play(context.Background(), ref(1, 6), false))
	out.emit(Event{Kind: EventEnded})

	assert.Equal(t, StateEnded, s.Snapshot().State)
	assert.Equal(t, []string{"1:6"}, out.loadedKeys())
}

func TestSession_PauseFailureLogged(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))
	s, out := newTestSession(t, &fakeClips{}, nil, Config{}, WithLogger(log))
	out.PauseFunc = func() error { return assert.AnError }

	require.NoError(t, s.Play(context.Background(), ref(1, 7), false))
	out.emit(Event{Kind: EventEnded})

	assert.Equal(t, StateEnded, s.Snapshot().State)
	assert.Contains(t, logs.String(), "pause output")
}

func TestSession_PreloadUsedOnAdvance(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	s, out := newTestSession(t, &fakeClips{}, fetcher, Config{})
	require.NoError(t, s.Play(context.Background(), ref(1, 1), false))

	require.Eventually(t, func() bool {
		return s.Snapshot().Preloaded == ref(1, 2)
	}, 2*time.Second, 10*time.Millisecond)

	out.emit(Event{Kind: EventEnded})
	last := out.lastLoad()
	require.NotNil(t, last.Buffer)
	assert.Equal(t, clipURL(ref(1, 2)), last.Buffer.URL())

	buf := fetcher.buffer(clipURL(ref(1, 2)))
	assert.False(t, buf.isReleased())

	s.Release()
	assert.True(t, buf.isReleased())
	assert.True(t, out.isClosed())
}

func TestSession_PreloadDiscardedAfterJump(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	gate := fetcher.gate(clipURL(ref(1, 2)))
	s, out := newTestSession(t, &fakeClips{}, fetcher, Config{})
	ctx := context.Background()

	require.NoError(t, s.Play(ctx, ref(1, 1), false))
	require.NoError(t, s.Play(ctx, ref(1, 5), true))
	close(gate)

	require.Eventually(t, func() bool {
		b := fetcher.buffer(clipURL(ref(1, 2)))
		return b != nil && b.isReleased()
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return s.Snapshot().Preloaded == ref(1, 6)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Nil(t, out.lastLoad().Buffer)
}

func TestSession_PauseDropsPreload(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	s, _ := newTestSession(t, &fakeClips{}, fetcher, Config{})
	require.NoError(t, s.Play(context.Background(), ref(1, 1), false))
	require.Eventually(t, func() bool {
		return s.Snapshot().Preloaded == ref(1, 2)
	}, 2*time.Second, 10*time.Millisecond)

	s.Pause()
	assert.True(t, fetcher.buffer(clipURL(ref(1, 2))).isReleased())
	assert.True(t, s.Snapshot().Preloaded.IsZero())
}

func TestSession_PauseWhileLoadingSupersedes(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	clips := &fakeClips{ClipFunc: func(_ context.Context, r domain.VerseRef) (domain.Clip, error) {
		<-gate
		return domain.Clip{Key: r, URL: clipURL(r)}, nil
	}}
	s, out := newTestSession(t, clips, nil, Config{})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Play(context.Background(), ref(1, 1), false) }()

	require.Eventually(t, func() bool {
		return s.Snapshot().State == StateLoading
	}, 2*time.Second, 10*time.Millisecond)
	s.Pause()
	close(gate)

	require.ErrorIs(t, <-errCh, domain.ErrSuperseded)
	assert.Equal(t, StateIdle, s.Snapshot().State)
	assert.Empty(t, out.loadedKeys())
}

func TestSession_SpeedAppliedLive(t *testing.T) {
	t.Parallel()

	s, out := newTestSession(t, &fakeClips{}, nil, Config{Speed: 1.25})
	require.NoError(t, s.Play(context.Background(), ref(1, 1), false))
	assert.InDelta(t, 1.25, out.currentSpeed(), 0.001)

	require.NoError(t, s.SetSpeed(1.5))
	assert.InDelta(t, 1.5, out.currentSpeed(), 0.001)
	assert.Equal(t, []string{"1:1"}, out.loadedKeys())

	require.Error(t, s.SetSpeed(3))
	assert.InDelta(t, 1.5, s.Snapshot().Speed, 0.001)
}

func TestSession_MediaSession(t *testing.T) {
	t.Parallel()

	media := &fakeMedia{}
	s, out := newTestSession(t, &fakeClips{}, nil, Config{Title: "Al-Fatiha"}, WithMediaSession(media))
	require.NoError(t, s.Play(context.Background(), ref(1, 1), false))

	media.mu.Lock()
	require.Len(t, media.meta, 1)
	assert.Equal(t, "1:1", media.meta[0].Title)
	assert.Equal(t, "Al-Fatiha", media.meta[0].Album)
	handlers := media.handlers
	media.mu.Unlock()
	assert.Equal(t, MediaPlaying, media.lastState())

	handlers.Next()
	assert.Equal(t, []string{"1:1", "1:2"}, out.loadedKeys())

	handlers.Pause()
	assert.Equal(t, StatePaused, s.Snapshot().State)
	assert.Equal(t, MediaPaused, media.lastState())

	handlers.Play()
	assert.Equal(t, StatePlaying, s.Snapshot().State)

	handlers.Previous()
	assert.Equal(t, ref(1, 1), s.Snapshot().Current)

	s.Release()
	assert.Equal(t, MediaNone, media.lastState())
}

func TestSession_AutoScroll(t *testing.T) {
	t.Parallel()

	scroller := &fakeScroller{}
	s, _ := newTestSession(t, &fakeClips{}, nil, Config{AutoScroll: true}, WithScroller(scroller))
	require.NoError(t, s.Play(context.Background(), ref(1, 4), false))

	require.Eventually(t, func() bool {
		return scroller.last() == ref(1, 4)
	}, 2*time.Second, 10*time.Millisecond)

	s.SetAutoScroll(false)
	require.NoError(t, s.PlayNext(context.Background()))
	assert.Never(t, func() bool {
		return scroller.last() == ref(1, 5)
	}, 200*time.Millisecond, 20*time.Millisecond)
}

func TestPlayer_AcquireTearsDownPrevious(t *testing.T) {
	t.Parallel()

	outs := &outputs{}
	fetcher := newFakeFetcher()
	p := NewPlayer(&fakeClips{}, fetcher, outs.new)
	ctx := context.Background()

	first, err := p.Acquire(Config{Playlist: fatiha()})
	require.NoError(t, err)
	require.NoError(t, first.Play(ctx, ref(1, 1), false))
	require.Eventually(t, func() bool {
		return first.Snapshot().Preloaded == ref(1, 2)
	}, 2*time.Second, 10*time.Millisecond)

	second, err := p.Acquire(Config{Playlist: fatiha()})
	require.NoError(t, err)
	t.Cleanup(second.Release)

	assert.True(t, outs.at(0).isClosed())
	assert.False(t, outs.at(1).isClosed())
	assert.True(t, fetcher.buffer(clipURL(ref(1, 2))).isReleased())
	assert.Same(t, second, p.Current())
	require.ErrorIs(t, first.Play(ctx, ref(1, 3), false), domain.ErrSessionClosed)

	// events from the torn down output change nothing
	outs.at(0).emit(Event{Kind: EventEnded})
	assert.Equal(t, []string{"1:1"}, outs.at(0).loadedKeys())
}

func TestPlayer_ReleaseDetaches(t *testing.T) {
	t.Parallel()

	outs := &outputs{}
	p := NewPlayer(&fakeClips{}, nil, outs.new)
	s, err := p.Acquire(Config{Playlist: fatiha()})
	require.NoError(t, err)

	s.Release()
	assert.Nil(t, p.Current())
	assert.True(t, outs.at(0).isClosed())
	s.Release()
}

func TestPlayer_AcquireValidates(t *testing.T) {
	t.Parallel()

	p := NewPlayer(&fakeClips{}, nil, (&outputs{}).new)

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "empty playlist", cfg: Config{}},
		{name: "reversed range", cfg: Config{Playlist: fatiha(), Range: &Range{Start: ref(1, 5), End: ref(1, 2)}}},
		{name: "range outside playlist", cfg: Config{Playlist: fatiha(), Range: &Range{Start: ref(1, 1), End: ref(2, 2)}}},
		{name: "bad repeat", cfg: Config{Playlist: fatiha(), Repeat: -3}},
		{name: "bad speed", cfg: Config{Playlist: fatiha(), Speed: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Acquire(tt.cfg)
			assert.Error(t, err)
		})
	}
	assert.Nil(t, p.Current())
}

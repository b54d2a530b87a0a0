package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/escalopa/quran-navigator/internal/domain"
)

// Session is one listening session. All state changes happen under mu; output
// callbacks carry the generation of the track pass they belong to and are
// ignored once the session moved on.
type Session struct {
	id       string
	player   *Player
	out      Output
	log      *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	playlist domain.Playlist
	rng      *Range
	title    string
	reciter  int
	scrollCh chan domain.VerseRef
	handlers MediaHandlers

	mu          sync.Mutex
	closed      bool
	state       State
	current     domain.VerseRef
	clip        domain.Clip
	buffer      domain.Buffer
	triedBackup bool
	repeat      int
	repeatsDone int
	speed       float64
	autoScroll  bool
	gen         uint64
	timer       *time.Timer
	preload     *preload
	preloadSeq  uint64
}

type trackPlan struct {
	gen uint64
	key domain.VerseRef
	pre domain.Buffer
}

func newSession(p *Player, cfg Config, id string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         id,
		player:     p,
		out:        p.newOutput(),
		log:        p.log.With("session", id),
		ctx:        ctx,
		cancel:     cancel,
		playlist:   cfg.Playlist,
		rng:        cfg.Range,
		title:      cfg.Title,
		reciter:    cfg.Reciter,
		scrollCh:   make(chan domain.VerseRef, 1),
		repeat:     cfg.Repeat,
		speed:      cfg.Speed,
		autoScroll: cfg.AutoScroll,
	}
	s.handlers = MediaHandlers{
		Play:     func() { s.logErr("media play", s.Resume(s.ctx)) },
		Pause:    s.Pause,
		Next:     func() { s.logErr("media next", s.PlayNext(s.ctx)) },
		Previous: func() { s.logErr("media previous", s.PlayPrevious(s.ctx)) },
	}
	if p.scroller != nil {
		go s.scrollLoop()
	}
	return s
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Play starts key, or toggles pause when key is already the current verse.
// With usePreloaded a matching preloaded buffer is played instead of the URL.
// A missing clip fails with [domain.ErrClipUnavailable] and is not skipped.
func (s *Session) Play(ctx context.Context, key domain.VerseRef, usePreloaded bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if !s.inBoundsLocked(key) {
		s.mu.Unlock()
		return fmt.Errorf("play %s: %w", key, domain.ErrInvalidVerseRef)
	}
	if key == s.current {
		if s.state == StateLoading {
			s.mu.Unlock()
			return nil
		}
		if s.state == StatePlaying || s.state == StatePaused || s.state.stopped() {
			err := s.toggleLocked()
			s.mu.Unlock()
			return err
		}
	}
	plan := s.beginLocked(key, usePreloaded)
	s.mu.Unlock()
	return s.completeTrack(ctx, plan, "manual")
}

// Resume continues a paused session or starts the current verse. It never pauses.
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if s.state == StatePlaying || s.state == StateLoading {
		s.mu.Unlock()
		return nil
	}
	key := s.current
	if key.IsZero() {
		key = s.firstLocked()
	}
	s.mu.Unlock()
	return s.Play(ctx, key, true)
}

// Pause stops the output and drops any preload.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StatePlaying:
		s.pauseLocked()
	case StateLoading:
		s.gen++
		s.state = StateIdle
		s.cancelPreloadLocked()
	}
}

// PlayNext moves to the following verse. At the end of the range or
// playlist it stops instead.
func (s *Session) PlayNext(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	var next domain.VerseRef
	if s.current.IsZero() {
		next = s.firstLocked()
	} else {
		n, ok := s.nextInBoundsLocked(s.current)
		if !ok {
			s.stopLocked(s.boundaryStateLocked(s.current))
			s.mu.Unlock()
			return nil
		}
		next = n
	}
	plan := s.beginLocked(next, true)
	s.mu.Unlock()
	return s.completeTrack(ctx, plan, "next")
}

// PlayPrevious moves to the preceding verse. It is a no-op at the start of
// the range or playlist.
func (s *Session) PlayPrevious(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if s.current.IsZero() || (s.rng != nil && s.current == s.rng.Start) {
		s.mu.Unlock()
		return nil
	}
	prev, ok := s.playlist.Prev(s.current)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	plan := s.beginLocked(prev, false)
	s.mu.Unlock()
	return s.completeTrack(ctx, plan, "previous")
}

// SetRepeat changes how many times each verse plays. It applies at the next
// end of clip.
func (s *Session) SetRepeat(n int) error {
	if !domain.ValidRepeat(n) {
		return fmt.Errorf("set repeat %d: invalid count", n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeat = n
	return nil
}

// SetSpeed changes the playback rate, live if a clip is loaded.
func (s *Session) SetSpeed(speed float64) error {
	if !domain.ValidSpeed(speed) {
		return fmt.Errorf("set speed %.2f: out of range", speed)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = speed
	if s.state == StatePlaying || s.state == StatePaused {
		if err := s.out.SetSpeed(speed); err != nil {
			return fmt.Errorf("set speed: %w", err)
		}
	}
	return nil
}

func (s *Session) SetAutoScroll(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoScroll = on
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:          s.id,
		State:       s.state,
		Current:     s.current,
		Repeat:      s.repeat,
		RepeatsDone: s.repeatsDone,
		Speed:       s.speed,
		AutoScroll:  s.autoScroll,
		Range:       s.rng,
	}
	if s.preload != nil && s.preload.buf != nil {
		snap.Preloaded = s.preload.key
	}
	return snap
}

// Release ends the session and frees its output and buffers.
func (s *Session) Release() {
	s.teardown()
	s.player.detach(s)
}

func (s *Session) teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	s.stopTimerLocked()
	s.cancelPreloadLocked()
	s.releaseBufferLocked()
	s.state = StateIdle
	if err := s.out.Close(); err != nil {
		s.log.Warn("close output", "error", err)
	}
	s.publishStateLocked(MediaNone)
	s.mu.Unlock()

	s.cancel()
	s.player.endSession(context.Background())
	s.log.Debug("session released")
}

// beginLocked switches the session to key and returns the plan that
// completeTrack finishes outside the lock.
func (s *Session) beginLocked(key domain.VerseRef, usePreloaded bool) trackPlan {
	s.gen++
	s.stopTimerLocked()
	pre := s.takePreloadLocked(key, usePreloaded)
	s.releaseBufferLocked()

	if key != s.current && s.autoScroll {
		s.requestScroll(key)
	}
	s.current = key
	s.state = StateLoading
	s.repeatsDone = 0
	s.triedBackup = false
	s.clip = domain.Clip{}
	return trackPlan{gen: s.gen, key: key, pre: pre}
}

func (s *Session) completeTrack(ctx context.Context, plan trackPlan, trigger string) error {
	clip, err := s.player.clips.Clip(ctx, s.reciter, plan.key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || plan.gen != s.gen {
		release(plan.pre)
		if s.closed {
			return domain.ErrSessionClosed
		}
		return domain.ErrSuperseded
	}
	if err != nil {
		release(plan.pre)
		s.state = StateIdle
		if perr := s.out.Pause(); perr != nil {
			s.log.Warn("pause output", "error", perr)
		}
		s.publishStateLocked(MediaPaused)
		if errors.Is(err, domain.ErrClipUnavailable) {
			s.player.metrics.RecordClipError(ctx, "unavailable")
		}
		return fmt.Errorf("play %s: %w", plan.key, err)
	}

	s.clip = clip
	src := Source{Key: plan.key, URL: clip.URL}
	if plan.pre != nil {
		if plan.pre.URL() == clip.URL {
			src.Buffer = plan.pre
			s.buffer = plan.pre
			s.player.metrics.RecordPreload(ctx, "used")
		} else {
			plan.pre.Release()
		}
	}
	if err := s.loadLocked(src); err != nil {
		return err
	}

	s.player.metrics.RecordClipStarted(ctx, trigger)
	s.log.Debug("clip started", "key", plan.key.String(), "trigger", trigger, "preloaded", src.Buffer != nil)
	s.startPreloadLocked()
	s.publishMediaLocked()
	return nil
}

// loadLocked loads src and starts it, falling back to the backup URL once.
func (s *Session) loadLocked(src Source) error {
	err := s.tryLoadLocked(src)
	if err != nil && s.clip.BackupURL != "" && !s.triedBackup {
		s.triedBackup = true
		s.player.metrics.RecordClipError(s.ctx, "backup")
		s.releaseBufferLocked()
		err = s.tryLoadLocked(Source{Key: src.Key, URL: s.clip.BackupURL})
	}
	if err != nil {
		s.state = StateIdle
		s.player.metrics.RecordClipError(s.ctx, "decode")
		return fmt.Errorf("load %s: %w: %w", src.Key, domain.ErrDecodeOrNetwork, err)
	}
	s.state = StatePlaying
	return nil
}

func (s *Session) tryLoadLocked(src Source) error {
	if err := s.out.Load(src, s.handler(s.gen)); err != nil {
		return err
	}
	return s.out.Play(s.speed)
}

func (s *Session) toggleLocked() error {
	switch s.state {
	case StatePlaying:
		s.pauseLocked()
	case StatePaused:
		if err := s.out.Resume(); err != nil {
			return fmt.Errorf("resume %s: %w", s.current, err)
		}
		s.state = StatePlaying
		s.startPreloadLocked()
		s.publishStateLocked(MediaPlaying)
	case StateEnded, StateRangeBoundary:
		s.gen++
		s.repeatsDone = 0
		if err := s.out.SeekStart(s.handler(s.gen)); err != nil {
			return fmt.Errorf("restart %s: %w", s.current, err)
		}
		s.state = StatePlaying
		s.startPreloadLocked()
		s.publishMediaLocked()
	}
	return nil
}

func (s *Session) pauseLocked() {
	if err := s.out.Pause(); err != nil {
		s.log.Warn("pause output", "error", err)
	}
	s.state = StatePaused
	s.stopTimerLocked()
	s.cancelPreloadLocked()
	s.publishStateLocked(MediaPaused)
}

func (s *Session) stopLocked(state State) {
	s.gen++
	s.stopTimerLocked()
	s.cancelPreloadLocked()
	if err := s.out.Pause(); err != nil {
		s.log.Warn("pause output", "error", err)
	}
	s.state = state
	s.publishStateLocked(MediaPaused)
	s.log.Debug("playback stopped", "key", s.current.String(), "state", state.String())
}

func (s *Session) handler(gen uint64) func(Event) {
	return func(ev Event) {
		switch ev.Kind {
		case EventEnded:
			s.finishClip(gen, "ended")
		case EventError:
			s.clipFailed(gen, ev.Err)
		case EventProgress:
			s.progress(gen, ev)
		}
	}
}

// finishClip runs the end-of-clip decision once per track pass. Natural end
// events and the near-end timer both land here.
func (s *Session) finishClip(gen uint64, trigger string) {
	s.mu.Lock()
	if s.closed || gen != s.gen || s.state != StatePlaying {
		s.mu.Unlock()
		return
	}
	plan, advance := s.endOfClipLocked(trigger)
	s.mu.Unlock()
	if advance {
		s.advance(plan)
	}
}

func (s *Session) clipFailed(gen uint64, cause error) {
	s.mu.Lock()
	if s.closed || gen != s.gen || s.state != StatePlaying {
		s.mu.Unlock()
		return
	}
	s.log.Warn("clip failed", "key", s.current.String(), "error", cause)
	s.player.metrics.RecordClipError(s.ctx, "decode")

	if s.clip.BackupURL != "" && !s.triedBackup {
		s.triedBackup = true
		s.gen++
		s.stopTimerLocked()
		s.releaseBufferLocked()
		err := s.tryLoadLocked(Source{Key: s.current, URL: s.clip.BackupURL})
		if err == nil {
			s.player.metrics.RecordClipError(s.ctx, "backup")
			s.mu.Unlock()
			return
		}
		s.log.Warn("backup clip failed", "key", s.current.String(), "error", err)
	}

	plan, advance := s.endOfClipLocked("error")
	s.mu.Unlock()
	if advance {
		s.advance(plan)
	}
}

func (s *Session) endOfClipLocked(trigger string) (trackPlan, bool) {
	s.stopTimerLocked()
	d, next := s.decideLocked()
	s.player.metrics.RecordAdvance(s.ctx, d.String())
	s.log.Debug("end of clip", "key", s.current.String(), "trigger", trigger, "decision", d.String())

	switch d {
	case decisionRepeat:
		s.repeatsDone++
		s.gen++
		if err := s.out.SeekStart(s.handler(s.gen)); err != nil {
			s.log.Warn("repeat clip", "error", err)
			s.stopLocked(StateEnded)
		}
	case decisionRangeEnd:
		s.stopLocked(StateRangeBoundary)
	case decisionPlaylistEnd:
		s.stopLocked(StateEnded)
	case decisionAdvance:
		return s.beginLocked(next, true), true
	}
	return trackPlan{}, false
}

// decideLocked is the single end-of-clip decision: repeat, stop at the range
// end, stop at the playlist end, or advance.
func (s *Session) decideLocked() (decision, domain.VerseRef) {
	if s.repeat == domain.RepeatForever || s.repeatsDone+1 < s.repeat {
		return decisionRepeat, domain.VerseRef{}
	}
	if s.rng != nil && s.current == s.rng.End {
		return decisionRangeEnd, domain.VerseRef{}
	}
	next, ok := s.playlist.Next(s.current)
	if !ok {
		return decisionPlaylistEnd, domain.VerseRef{}
	}
	return decisionAdvance, next
}

// advance completes an automatic move. A verse without a clip, or one that
// fails to load, ends like a played clip and the next verse in bounds starts.
func (s *Session) advance(plan trackPlan) {
	for {
		err := s.completeTrack(s.ctx, plan, "advance")
		if err == nil {
			return
		}
		if errors.Is(err, domain.ErrSuperseded) || errors.Is(err, domain.ErrSessionClosed) {
			return
		}
		if !errors.Is(err, domain.ErrClipUnavailable) && !errors.Is(err, domain.ErrDecodeOrNetwork) {
			s.log.Warn("advance failed", "key", plan.key.String(), "error", err)
			return
		}

		s.mu.Lock()
		if s.closed || plan.gen != s.gen {
			s.mu.Unlock()
			return
		}
		next, ok := s.nextInBoundsLocked(plan.key)
		if !ok {
			s.stopLocked(s.boundaryStateLocked(plan.key))
			s.mu.Unlock()
			return
		}
		s.log.Debug("skipping clip", "key", plan.key.String(), "error", err)
		plan = s.beginLocked(next, true)
		s.mu.Unlock()
	}
}

func (s *Session) progress(gen uint64, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen || s.state != StatePlaying || s.timer != nil || ev.Duration <= 0 {
		return
	}
	remaining := max(ev.Duration-ev.Position, 0)
	if remaining > s.player.nearEnd {
		return
	}
	wait := time.Duration(float64(remaining)/s.speed) + nearEndGrace
	s.timer = time.AfterFunc(wait, func() { s.finishClip(gen, "near_end") })
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) releaseBufferLocked() {
	if s.buffer != nil {
		s.buffer.Release()
		s.buffer = nil
	}
}

func (s *Session) inBoundsLocked(key domain.VerseRef) bool {
	i, ok := s.playlist.IndexOf(key)
	if !ok {
		return false
	}
	if s.rng == nil {
		return true
	}
	start, _ := s.playlist.IndexOf(s.rng.Start)
	end, _ := s.playlist.IndexOf(s.rng.End)
	return i >= start && i <= end
}

func (s *Session) nextInBoundsLocked(key domain.VerseRef) (domain.VerseRef, bool) {
	if s.rng != nil && key == s.rng.End {
		return domain.VerseRef{}, false
	}
	return s.playlist.Next(key)
}

func (s *Session) boundaryStateLocked(key domain.VerseRef) State {
	if s.rng != nil && key == s.rng.End {
		return StateRangeBoundary
	}
	return StateEnded
}

func (s *Session) firstLocked() domain.VerseRef {
	if s.rng != nil {
		return s.rng.Start
	}
	first, _ := s.playlist.First()
	return first
}

func (s *Session) publishMediaLocked() {
	if !s.player.supported {
		return
	}
	m := s.player.media
	m.SetMetadata(MediaMetadata{
		Title:  s.current.String(),
		Album:  s.title,
		Artist: strconv.Itoa(s.reciter),
	})
	m.SetHandlers(s.handlers)
	m.SetPlaybackState(MediaPlaying)
}

func (s *Session) publishStateLocked(state MediaPlaybackState) {
	if s.player.supported {
		s.player.media.SetPlaybackState(state)
	}
}

// requestScroll hands key to the scroll goroutine, replacing any key it has
// not picked up yet.
func (s *Session) requestScroll(key domain.VerseRef) {
	if s.player.scroller == nil {
		return
	}
	for {
		select {
		case s.scrollCh <- key:
			return
		default:
		}
		select {
		case <-s.scrollCh:
		default:
		}
	}
}

func (s *Session) scrollLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case key := <-s.scrollCh:
			s.player.scroller.ScrollTo(key)
		}
	}
}

func (s *Session) logErr(op string, err error) {
	if err != nil && !errors.Is(err, domain.ErrSuperseded) {
		s.log.Warn(op, "error", err)
	}
}

func release(b domain.Buffer) {
	if b != nil {
		b.Release()
	}
}

package telegram

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/escalopa/quran-navigator/internal/domain"
	"github.com/escalopa/quran-navigator/internal/playback"
)

var errOutputClosed = errors.New("audio output closed")

// audioOutput plays clips by sending them to the chat as audio messages.
// Telegram reports the clip duration on send; the end of the clip is
// emitted from a timer scaled by the playback speed.
type audioOutput struct {
	api      sender
	chatID   int64
	fallback time.Duration
	log      *slog.Logger

	mu        sync.Mutex
	closed    bool
	seq       uint64
	src       playback.Source
	data      []byte
	fileID    string
	onEvent   func(playback.Event)
	playing   bool
	speed     float64
	duration  time.Duration
	position  time.Duration
	startedAt time.Time
	timer     *time.Timer
}

func newAudioOutput(api sender, chatID int64, fallback time.Duration, log *slog.Logger) *audioOutput {
	return &audioOutput{
		api:      api,
		chatID:   chatID,
		fallback: fallback,
		log:      log,
		speed:    1,
	}
}

func (o *audioOutput) Load(src playback.Source, onEvent func(playback.Event)) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return errOutputClosed
	}

	o.resetLocked()
	o.src = src
	o.onEvent = onEvent
	o.data = nil
	if src.Buffer != nil {
		o.data = append([]byte(nil), src.Buffer.Bytes()...)
	}
	o.fileID = ""
	return nil
}

func (o *audioOutput) Play(speed float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return errOutputClosed
	}
	if o.src.URL == "" && o.data == nil {
		return fmt.Errorf("play: nothing loaded: %w", domain.ErrDecodeOrNetwork)
	}

	o.speed = speed
	o.playing = true
	go o.send(o.seq)
	return nil
}

func (o *audioOutput) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.playing {
		return nil
	}
	o.position = o.elapsedLocked()
	o.playing = false
	o.stopTimerLocked()
	return nil
}

func (o *audioOutput) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return errOutputClosed
	}
	if o.playing {
		return nil
	}
	o.playing = true
	o.startedAt = time.Now()
	if o.duration > 0 {
		o.armTimerLocked()
	}
	return nil
}

// SeekStart sends the clip again. Telegram keeps the uploaded file, so the
// second send goes by file id.
func (o *audioOutput) SeekStart(onEvent func(playback.Event)) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return errOutputClosed
	}
	o.resetLocked()
	o.onEvent = onEvent
	o.playing = true
	go o.send(o.seq)
	return nil
}

func (o *audioOutput) SetSpeed(speed float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.playing && o.duration > 0 {
		o.position = o.elapsedLocked()
		o.startedAt = time.Now()
		o.speed = speed
		o.armTimerLocked()
		return nil
	}
	o.speed = speed
	return nil
}

func (o *audioOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	o.resetLocked()
	o.onEvent = nil
	o.data = nil
	return nil
}

func (o *audioOutput) send(seq uint64) {
	o.mu.Lock()
	if seq != o.seq {
		o.mu.Unlock()
		return
	}
	cfg, key := o.audioConfigLocked(), o.src.Key
	o.mu.Unlock()

	msg, err := o.api.Send(cfg)

	o.mu.Lock()
	if seq != o.seq {
		o.mu.Unlock()
		return
	}
	cb := o.onEvent
	if err != nil {
		o.playing = false
		o.mu.Unlock()
		o.log.Warn("send audio", "key", key.String(), "error", err)
		if cb != nil {
			cb(playback.Event{Kind: playback.EventError, Err: fmt.Errorf("send audio: %w", err)})
		}
		return
	}

	o.duration = o.fallback
	if msg.Audio != nil {
		o.fileID = msg.Audio.FileID
		if msg.Audio.Duration > 0 {
			o.duration = time.Duration(msg.Audio.Duration) * time.Second
		}
	}
	o.position = 0
	o.startedAt = time.Now()
	if o.playing {
		o.armTimerLocked()
	}
	duration := o.duration
	o.mu.Unlock()

	if cb != nil {
		cb(playback.Event{Kind: playback.EventProgress, Duration: duration})
	}
}

func (o *audioOutput) audioConfigLocked() tgbotapi.AudioConfig {
	var file tgbotapi.RequestFileData
	switch {
	case o.fileID != "":
		file = tgbotapi.FileID(o.fileID)
	case o.data != nil:
		file = tgbotapi.FileBytes{Name: o.src.Key.FileCode() + ".mp3", Bytes: o.data}
	default:
		file = tgbotapi.FileURL(o.src.URL)
	}

	cfg := tgbotapi.NewAudio(o.chatID, file)
	cfg.Caption = o.src.Key.String()
	cfg.DisableNotification = true
	return cfg
}

func (o *audioOutput) finish(seq uint64) {
	o.mu.Lock()
	if seq != o.seq || !o.playing {
		o.mu.Unlock()
		return
	}
	o.playing = false
	o.position = o.duration
	o.timer = nil
	cb, duration := o.onEvent, o.duration
	o.mu.Unlock()

	if cb != nil {
		cb(playback.Event{Kind: playback.EventEnded, Position: duration, Duration: duration})
	}
}

func (o *audioOutput) armTimerLocked() {
	o.stopTimerLocked()
	remaining := max(o.duration-o.position, 0)
	wait := time.Duration(float64(remaining) / o.speed)
	seq := o.seq
	o.timer = time.AfterFunc(wait, func() { o.finish(seq) })
}

func (o *audioOutput) elapsedLocked() time.Duration {
	if !o.playing || o.startedAt.IsZero() {
		return o.position
	}
	pos := o.position + time.Duration(float64(time.Since(o.startedAt))*o.speed)
	if o.duration > 0 {
		pos = min(pos, o.duration)
	}
	return pos
}

func (o *audioOutput) stopTimerLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

// resetLocked invalidates in-flight sends and timers of the current media.
func (o *audioOutput) resetLocked() {
	o.seq++
	o.stopTimerLocked()
	o.playing = false
	o.duration = 0
	o.position = 0
	o.startedAt = time.Time{}
}

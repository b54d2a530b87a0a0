package telegram

import (
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/escalopa/quran-navigator/internal/domain"
	"github.com/escalopa/quran-navigator/internal/playback"
)

// nowPlaying is the media session of a chat: one message showing the clip
// being played, with transport buttons under it.
type nowPlaying struct {
	api    sender
	i18n   domain.I18nPort
	chatID int64
	log    *slog.Logger

	mu       sync.Mutex
	lang     domain.Language
	meta     playback.MediaMetadata
	state    playback.MediaPlaybackState
	handlers playback.MediaHandlers

	// renderMu serializes message edits. Each render reads the latest state.
	renderMu sync.Mutex
	msgID    int
	rendered string
}

func newNowPlaying(api sender, i18n domain.I18nPort, chatID int64, lang domain.Language, log *slog.Logger) *nowPlaying {
	return &nowPlaying{
		api:    api,
		i18n:   i18n,
		chatID: chatID,
		lang:   lang,
		state:  playback.MediaNone,
		log:    log,
	}
}

func (n *nowPlaying) Supported() bool { return true }

func (n *nowPlaying) SetMetadata(m playback.MediaMetadata) {
	n.mu.Lock()
	n.meta = m
	n.mu.Unlock()
	go n.render()
}

func (n *nowPlaying) SetHandlers(h playback.MediaHandlers) {
	n.mu.Lock()
	n.handlers = h
	n.mu.Unlock()
}

func (n *nowPlaying) SetPlaybackState(s playback.MediaPlaybackState) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
	go n.render()
}

func (n *nowPlaying) setLanguage(lang domain.Language) {
	n.mu.Lock()
	n.lang = lang
	n.mu.Unlock()
}

// control runs the handler behind a transport button. It reports false when
// nothing is playing.
func (n *nowPlaying) control(action string) bool {
	n.mu.Lock()
	h, state := n.handlers, n.state
	n.mu.Unlock()

	if state == playback.MediaNone {
		return false
	}

	var fn func()
	switch action {
	case mediaPrev:
		fn = h.Previous
	case mediaNext:
		fn = h.Next
	case mediaToggle:
		fn = h.Play
		if state == playback.MediaPlaying {
			fn = h.Pause
		}
	}
	if fn == nil {
		return false
	}
	fn()
	return true
}

func (n *nowPlaying) text() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case playback.MediaPlaying:
		return n.i18n.Get(n.lang, "playback.now_playing", n.meta.Title, n.meta.Album), true
	case playback.MediaPaused:
		return n.i18n.Get(n.lang, "playback.paused", n.meta.Title, n.meta.Album), true
	default:
		return n.i18n.Get(n.lang, "playback.stopped"), false
	}
}

func (n *nowPlaying) render() {
	n.renderMu.Lock()
	defer n.renderMu.Unlock()

	text, active := n.text()
	if text == n.rendered {
		return
	}

	n.mu.Lock()
	playing := n.state == playback.MediaPlaying
	n.mu.Unlock()

	if !active {
		if n.msgID != 0 {
			edit := tgbotapi.NewEditMessageText(n.chatID, n.msgID, text)
			if _, err := n.api.Send(edit); err != nil {
				n.log.Debug("edit now playing", "error", err)
			}
		}
		n.msgID = 0
		n.rendered = ""
		return
	}

	keyboard := mediaKeyboard(playing)
	if n.msgID != 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(n.chatID, n.msgID, text, keyboard)
		if _, err := n.api.Send(edit); err == nil {
			n.rendered = text
			return
		}
		n.msgID = 0
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ReplyMarkup = keyboard
	msg.DisableNotification = true
	sent, err := n.api.Send(msg)
	if err != nil {
		n.log.Warn("send now playing", "error", err)
		return
	}
	n.msgID = sent.MessageID
	n.rendered = text
}

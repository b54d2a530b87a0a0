package telegram

import (
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/escalopa/quran-navigator/internal/domain"
)

// positionScroller keeps a "reading position" message pointing at the verse
// being recited.
type positionScroller struct {
	api    sender
	i18n   domain.I18nPort
	chatID int64
	log    *slog.Logger

	mu    sync.Mutex
	lang  domain.Language
	msgID int
}

func newPositionScroller(api sender, i18n domain.I18nPort, chatID int64, lang domain.Language, log *slog.Logger) *positionScroller {
	return &positionScroller{api: api, i18n: i18n, chatID: chatID, lang: lang, log: log}
}

func (p *positionScroller) setLanguage(lang domain.Language) {
	p.mu.Lock()
	p.lang = lang
	p.mu.Unlock()
}

func (p *positionScroller) ScrollTo(ref domain.VerseRef) {
	p.mu.Lock()
	defer p.mu.Unlock()

	place := fmt.Sprintf("%s · %s", ref, p.i18n.GetSurahName(p.lang, ref.Surah))
	text := p.i18n.Get(p.lang, "playback.position", place)

	if p.msgID != 0 {
		if _, err := p.api.Send(tgbotapi.NewEditMessageText(p.chatID, p.msgID, text)); err == nil {
			return
		}
	}

	msg := tgbotapi.NewMessage(p.chatID, text)
	msg.DisableNotification = true
	sent, err := p.api.Send(msg)
	if err != nil {
		p.log.Warn("send reading position", "key", ref.String(), "error", err)
		return
	}
	p.msgID = sent.MessageID
}

package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"github.com/escalopa/quran-navigator/internal/adapter/i18n"
	"github.com/escalopa/quran-navigator/internal/application"
	"github.com/escalopa/quran-navigator/internal/domain"
	"github.com/escalopa/quran-navigator/internal/match"
)

type fakeSender struct {
	mu           sync.Mutex
	nextID       int
	audioSeconds int
	sent         []tgbotapi.Chattable
	requests     []tgbotapi.Chattable
	SendFunc     func(c tgbotapi.Chattable) error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SendFunc != nil {
		if err := f.SendFunc(c); err != nil {
			return tgbotapi.Message{}, err
		}
	}
	f.nextID++
	f.sent = append(f.sent, c)

	msg := tgbotapi.Message{MessageID: f.nextID}
	if _, ok := c.(tgbotapi.AudioConfig); ok {
		msg.Audio = &tgbotapi.Audio{FileID: fmt.Sprintf("file-%d", f.nextID), Duration: f.audioSeconds}
	}
	return msg, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) audios() []tgbotapi.AudioConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.AudioConfig
	for _, c := range f.sent {
		if a, ok := c.(tgbotapi.AudioConfig); ok {
			out = append(out, a)
		}
	}
	return out
}

func (f *fakeSender) captions() []string {
	var out []string
	for _, a := range f.audios() {
		out = append(out, a.Caption)
	}
	return out
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

type fakeClips struct{}

func (fakeClips) Clip(_ context.Context, reciter int, ref domain.VerseRef) (domain.Clip, error) {
	if ref.Surah == 114 {
		return domain.Clip{}, domain.ErrClipUnavailable
	}
	return domain.Clip{
		Key: ref,
		URL: fmt.Sprintf("https://cdn.test/%d/%s.mp3", reciter, ref.FileCode()),
	}, nil
}

type fakeEngine struct {
	SearchFunc func(ctx context.Context, text string, lang domain.Language, size int) ([]domain.RankedResult, error)
}

func (f *fakeEngine) Search(ctx context.Context, text string, lang domain.Language, size int) ([]domain.RankedResult, error) {
	if f.SearchFunc == nil {
		return nil, nil
	}
	return f.SearchFunc(ctx, text, lang, size)
}

type memPrefs struct {
	mu   sync.Mutex
	data map[string]domain.Preferences
}

func (m *memPrefs) GetPreferences(_ context.Context, userID string) (domain.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data[userID]
	if !ok {
		return domain.Preferences{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *memPrefs) SetPreferences(_ context.Context, userID string, p domain.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]domain.Preferences)
	}
	m.data[userID] = p
	return nil
}

var errSendFailed = errors.New("telegram: bad request")

type testBot struct {
	*Bot
	api   *fakeSender
	prefs *memPrefs
	tr    *i18n.I18n
}

func newTestBot(t *testing.T, engine *fakeEngine, opts ...Option) *testBot {
	t.Helper()

	catalog := domain.DefaultCatalog()
	tr, err := i18n.NewI18n(catalog)
	require.NoError(t, err)

	if engine == nil {
		engine = &fakeEngine{}
	}
	prefs := &memPrefs{}
	nav := application.NewNavigatorService(catalog, match.New(catalog), engine, application.WithPreferencesStore(prefs))

	api := &fakeSender{}
	opts = append([]Option{WithClipFallback(time.Hour)}, opts...)
	b := newBot(api, nav, catalog, tr, fakeClips{}, nil, opts...)
	t.Cleanup(func() { _ = b.Stop() })

	return &testBot{Bot: b, api: api, prefs: prefs, tr: tr}
}

func textMessage(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: 42},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}}
}

func commandMessage(chatID int64, command, args string) tgbotapi.Update {
	text := "/" + command
	if args != "" {
		text += " " + args
	}
	u := textMessage(chatID, text)
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command) + 1}}
	return u
}

func callbackQuery(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 42},
		Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

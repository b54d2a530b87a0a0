// Package telegram is the chat front end of the navigator: it turns messages
// into navigation intents and plays the resolved verses back into the chat.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/escalopa/quran-navigator/internal/application"
	"github.com/escalopa/quran-navigator/internal/domain"
	"github.com/escalopa/quran-navigator/internal/observe"
	"github.com/escalopa/quran-navigator/internal/playback"
)

const (
	defaultUpdateTimeout = 60
	defaultClipFallback  = 15 * time.Second
)

// sender is the part of the Bot API used for outgoing calls.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type CommandHandler func(ctx context.Context, msg *tgbotapi.Message, lang domain.Language)

// Option configures a [Bot].
type Option func(*Bot)

// WithThreshold sets the confidence at which free text navigates directly.
func WithThreshold(t int) Option {
	return func(b *Bot) { b.threshold = t }
}

// WithUpdateTimeout sets the long polling timeout in seconds.
func WithUpdateTimeout(sec int) Option {
	return func(b *Bot) { b.updateTimeout = sec }
}

// WithDebug logs every Bot API request.
func WithDebug(on bool) Option {
	return func(b *Bot) { b.debug = on }
}

// WithNearEnd sets the near-end threshold of chat players.
func WithNearEnd(d time.Duration) Option {
	return func(b *Bot) { b.nearEnd = d }
}

// WithClipFallback sets the clip length assumed when Telegram reports none.
func WithClipFallback(d time.Duration) Option {
	return func(b *Bot) { b.clipFallback = d }
}

func WithMetrics(m *observe.Metrics) Option {
	return func(b *Bot) { b.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) { b.log = l }
}

type Bot struct {
	api     sender
	updates *tgbotapi.BotAPI
	nav     *application.NavigatorService
	catalog *domain.Catalog
	i18n    domain.I18nPort
	clips   domain.ClipSource
	fetcher domain.Fetcher

	threshold     int
	updateTimeout int
	debug         bool
	nearEnd       time.Duration
	clipFallback  time.Duration
	metrics       *observe.Metrics
	log           *slog.Logger

	commands map[string]CommandHandler
	cancel   context.CancelFunc

	mu    sync.Mutex
	chats map[int64]*chat
}

// chat is the playback state of one conversation.
type chat struct {
	player *playback.Player
	media  *nowPlaying
	scroll *positionScroller
}

func NewBot(token string, nav *application.NavigatorService, catalog *domain.Catalog, i18n domain.I18nPort, clips domain.ClipSource, fetcher domain.Fetcher, opts ...Option) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	bot := newBot(api, nav, catalog, i18n, clips, fetcher, opts...)
	bot.updates = api
	api.Debug = bot.debug

	// Register commands
	bot.registerCommands()

	return bot, nil
}

func newBot(api sender, nav *application.NavigatorService, catalog *domain.Catalog, i18n domain.I18nPort, clips domain.ClipSource, fetcher domain.Fetcher, opts ...Option) *Bot {
	b := &Bot{
		api:           api,
		nav:           nav,
		catalog:       catalog,
		i18n:          i18n,
		clips:         clips,
		fetcher:       fetcher,
		threshold:     domain.DefaultAutoNavigateThreshold,
		updateTimeout: defaultUpdateTimeout,
		clipFallback:  defaultClipFallback,
		log:           slog.Default(),
		chats:         make(map[int64]*chat),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.With("component", "telegram")
	b.commands = b.commandHandlers()
	return b
}

func (b *Bot) Start(ctx context.Context) error {
	if b.updates == nil {
		return errors.New("start bot: no update source")
	}

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	b.log.Info("authorized", "account", b.updates.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.updateTimeout

	updates := b.updates.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) Stop() error {
	if b.cancel != nil {
		b.cancel()
	}
	if b.updates != nil {
		b.updates.StopReceivingUpdates()
	}

	b.mu.Lock()
	chats := b.chats
	b.chats = make(map[int64]*chat)
	b.mu.Unlock()

	for _, c := range chats {
		c.player.Release()
	}
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	userID := b.getUserID(update)
	if userID == "" {
		return
	}

	lang := b.nav.Preferences(ctx, userID).Language

	// Handle commands
	if update.Message != nil && update.Message.IsCommand() {
		b.handleCommand(ctx, update.Message, lang)
		return
	}

	// Handle callback queries (button presses)
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery, lang)
		return
	}

	// Handle text messages (navigation requests)
	if update.Message != nil && update.Message.Text != "" {
		b.handleText(ctx, update.Message, lang)
		return
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, lang domain.Language) {
	handler, exists := b.commands[msg.Command()]
	if !exists {
		b.sendMessage(msg.Chat.ID, b.i18n.Get(lang, "error.unknown_command"))
		return
	}

	handler(ctx, msg, lang)
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message, lang domain.Language) {
	userID := strconv.FormatInt(msg.From.ID, 10)
	chatID := msg.Chat.ID

	var local []domain.AyahRecord
	if surah := b.currentSurah(chatID); surah > 0 {
		local = b.nav.LocalVerses(ctx, surah)
	}

	res, err := b.nav.Resolve(ctx, userID, msg.Text, lang, local)
	switch {
	case errors.Is(err, domain.ErrSuperseded):
		return
	case errors.Is(err, domain.ErrSearchUnavailable):
		b.sendMessage(chatID, b.i18n.Get(lang, "error.search_unavailable"))
		return
	case err != nil:
		b.log.Error("resolve", "user_id", userID, "error", err)
		b.sendMessage(chatID, b.i18n.Get(lang, "error.generic"))
		return
	}

	if !res.Intent.IsMatch() {
		b.sendMessage(chatID, b.i18n.Get(lang, "nav.no_match"))
		return
	}

	if res.Intent.AutoNavigate(b.threshold) || len(res.Suggestions) == 0 {
		b.navigate(ctx, chatID, userID, res.Intent)
		return
	}

	b.sendMessageWithKeyboard(chatID, b.i18n.Get(lang, "nav.suggestions"), suggestionsKeyboard(res.Suggestions))
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, lang domain.Language) {
	if callback.Message == nil {
		return
	}

	userID := strconv.FormatInt(callback.From.ID, 10)
	chatID := callback.Message.Chat.ID

	// Answer callback to remove loading state
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.log.Debug("answer callback", "error", err)
	}

	prefix, value := parseCallback(callback.Data)
	switch prefix {
	case cbLanguage:
		newLang := domain.Language(value)
		if _, err := b.nav.UpdatePreferences(ctx, userID, func(p *domain.Preferences) { p.Language = newLang }); err != nil {
			b.log.Warn("set language", "user_id", userID, "error", err)
			b.answerCallbackAlert(callback.ID, b.i18n.Get(lang, "error.invalid_input"))
			return
		}
		b.setChatLanguage(chatID, newLang)
		b.editMessageWithKeyboard(callback.Message, b.i18n.Get(newLang, "surah.select"), b.getSurahKeyboard(newLang, 0))
		b.sendMessage(chatID, b.i18n.Get(newLang, "language.changed"))

	case cbSurahPage:
		page, _ := strconv.Atoi(value)
		b.editMessageWithKeyboard(callback.Message, b.i18n.Get(lang, "surah.select"), b.getSurahKeyboard(lang, page))

	case cbSurah:
		id, err := strconv.Atoi(value)
		if err != nil {
			b.answerCallbackAlert(callback.ID, b.i18n.Get(lang, "error.invalid_input"))
			return
		}
		b.navigate(ctx, chatID, userID, domain.SurahIntent(id, 100))

	case cbGoto:
		ref, err := domain.ParseVerseRef(value)
		if err != nil {
			b.answerCallbackAlert(callback.ID, b.i18n.Get(lang, "error.invalid_input"))
			return
		}
		b.navigate(ctx, chatID, userID, domain.AyahIntent(ref, 100, domain.OriginRemote))

	case cbRepeat:
		n, err := strconv.Atoi(value)
		if err != nil {
			b.answerCallbackAlert(callback.ID, b.i18n.Get(lang, "error.invalid_input"))
			return
		}
		b.setRepeat(ctx, chatID, userID, lang, n)

	case cbSpeed:
		s, err := strconv.ParseFloat(value, 64)
		if err != nil {
			b.answerCallbackAlert(callback.ID, b.i18n.Get(lang, "error.invalid_input"))
			return
		}
		b.setSpeed(ctx, chatID, userID, lang, s)

	case cbMedia:
		b.handleMedia(chatID, lang, value, callback.ID)
	}
}

func (b *Bot) handleMedia(chatID int64, lang domain.Language, action, callbackID string) {
	c := b.existingChat(chatID)
	if action == mediaStop {
		if c != nil {
			c.player.Release()
		}
		return
	}
	if c == nil || !c.media.control(action) {
		b.answerCallbackAlert(callbackID, b.i18n.Get(lang, "playback.nothing"))
	}
}

// navigate starts playback of the target named by intent.
func (b *Bot) navigate(ctx context.Context, chatID int64, userID string, intent domain.NavigationIntent) {
	prefs := b.nav.Preferences(ctx, userID)

	target, err := b.nav.PlaylistFor(intent)
	if err != nil {
		b.log.Warn("playlist", "intent", intent.Kind.String(), "error", err)
		b.sendMessage(chatID, b.i18n.Get(prefs.Language, "error.invalid_input"))
		return
	}

	b.play(ctx, chatID, prefs, target, nil)
}

func (b *Bot) play(ctx context.Context, chatID int64, prefs domain.Preferences, target application.Target, rng *playback.Range) {
	c := b.chatFor(chatID, prefs.Language)

	session, err := c.player.Acquire(application.SessionConfig(target, rng, prefs))
	if err != nil {
		b.log.Error("acquire session", "chat_id", chatID, "error", err)
		b.sendMessage(chatID, b.i18n.Get(prefs.Language, "error.generic"))
		return
	}

	err = session.Play(ctx, target.Start, false)
	switch {
	case err == nil, errors.Is(err, domain.ErrSuperseded), errors.Is(err, domain.ErrSessionClosed):
	case errors.Is(err, domain.ErrClipUnavailable):
		b.sendMessage(chatID, b.i18n.Get(prefs.Language, "error.clip_unavailable", target.Start.String()))
	default:
		b.log.Error("play", "chat_id", chatID, "key", target.Start.String(), "error", err)
		b.sendMessage(chatID, b.i18n.Get(prefs.Language, "error.generic"))
	}
}

func (b *Bot) setRepeat(ctx context.Context, chatID int64, userID string, lang domain.Language, n int) {
	if _, err := b.nav.UpdatePreferences(ctx, userID, func(p *domain.Preferences) { p.Repeat = n }); err != nil {
		b.log.Warn("set repeat", "user_id", userID, "error", err)
		b.sendMessage(chatID, b.i18n.Get(lang, "error.invalid_input"))
		return
	}
	if s := b.session(chatID); s != nil {
		if err := s.SetRepeat(n); err != nil {
			b.log.Warn("apply repeat", "chat_id", chatID, "error", err)
		}
	}
	b.sendMessage(chatID, b.i18n.Get(lang, "repeat.set", b.repeatLabel(lang, n)))
}

func (b *Bot) setSpeed(ctx context.Context, chatID int64, userID string, lang domain.Language, speed float64) {
	if _, err := b.nav.UpdatePreferences(ctx, userID, func(p *domain.Preferences) { p.Speed = speed }); err != nil {
		b.log.Warn("set speed", "user_id", userID, "error", err)
		b.sendMessage(chatID, b.i18n.Get(lang, "error.invalid_input"))
		return
	}
	if s := b.session(chatID); s != nil {
		if err := s.SetSpeed(speed); err != nil {
			b.log.Warn("apply speed", "chat_id", chatID, "error", err)
		}
	}
	b.sendMessage(chatID, b.i18n.Get(lang, "speed.set", strconv.FormatFloat(speed, 'f', -1, 64)))
}

func (b *Bot) chatFor(chatID int64, lang domain.Language) *chat {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.chats[chatID]; ok {
		c.media.setLanguage(lang)
		c.scroll.setLanguage(lang)
		return c
	}

	log := b.log.With("chat_id", chatID)
	c := &chat{
		media:  newNowPlaying(b.api, b.i18n, chatID, lang, log),
		scroll: newPositionScroller(b.api, b.i18n, chatID, lang, log),
	}
	opts := []playback.Option{
		playback.WithMediaSession(c.media),
		playback.WithScroller(c.scroll),
		playback.WithLogger(log),
	}
	if b.metrics != nil {
		opts = append(opts, playback.WithMetrics(b.metrics))
	}
	if b.nearEnd > 0 {
		opts = append(opts, playback.WithNearEnd(b.nearEnd))
	}
	c.player = playback.NewPlayer(b.clips, b.fetcher, func() playback.Output {
		return newAudioOutput(b.api, chatID, b.clipFallback, log)
	}, opts...)

	b.chats[chatID] = c
	return c
}

func (b *Bot) existingChat(chatID int64) *chat {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chats[chatID]
}

func (b *Bot) session(chatID int64) *playback.Session {
	if c := b.existingChat(chatID); c != nil {
		return c.player.Current()
	}
	return nil
}

func (b *Bot) setChatLanguage(chatID int64, lang domain.Language) {
	if c := b.existingChat(chatID); c != nil {
		c.media.setLanguage(lang)
		c.scroll.setLanguage(lang)
	}
}

// currentSurah returns the surah being played in the chat, or 0.
func (b *Bot) currentSurah(chatID int64) int {
	s := b.session(chatID)
	if s == nil {
		return 0
	}
	return s.Snapshot().Current.Surah
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) sendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) editMessageWithKeyboard(msg *tgbotapi.Message, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(msg.Chat.ID, msg.MessageID, text, keyboard)
	if _, err := b.api.Send(edit); err != nil {
		b.log.Warn("edit message", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (b *Bot) answerCallbackAlert(callbackID, text string) {
	callback := tgbotapi.NewCallbackWithAlert(callbackID, text)
	if _, err := b.api.Request(callback); err != nil {
		b.log.Debug("answer callback", "error", err)
	}
}

func (b *Bot) getUserID(update tgbotapi.Update) string {
	if update.Message != nil && update.Message.From != nil {
		return strconv.FormatInt(update.Message.From.ID, 10)
	}
	if update.CallbackQuery != nil && update.CallbackQuery.From != nil {
		return strconv.FormatInt(update.CallbackQuery.From.ID, 10)
	}
	return ""
}

package telegram

import (
	"context"
	"errors"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/escalopa/quran-navigator/internal/domain"
)

func (b *Bot) commandHandlers() map[string]CommandHandler {
	return map[string]CommandHandler{
		"start":      b.commandStart,
		"help":       b.commandHelp,
		"surah":      b.commandSurah,
		"range":      b.commandRange,
		"repeat":     b.commandRepeat,
		"speed":      b.commandSpeed,
		"autoscroll": b.commandAutoScroll,
		"stop":       b.commandStop,
		"language":   b.commandLanguage,
	}
}

// registerCommands publishes the command list shown in Telegram clients.
func (b *Bot) registerCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "start", Description: "Start the bot"},
		{Command: "surah", Description: "Choose a surah"},
		{Command: "range", Description: "Play a range of verses"},
		{Command: "repeat", Description: "Repeat each verse"},
		{Command: "speed", Description: "Playback speed"},
		{Command: "autoscroll", Description: "Follow the recitation"},
		{Command: "stop", Description: "Stop playback"},
		{Command: "language", Description: "Change language"},
		{Command: "help", Description: "Show help"},
	}

	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		b.log.Warn("set bot commands", "error", err)
	}
}

func (b *Bot) commandStart(_ context.Context, msg *tgbotapi.Message, lang domain.Language) {
	b.sendMessage(msg.Chat.ID, b.i18n.Get(lang, "start.welcome"))
	b.sendMessageWithKeyboard(msg.Chat.ID, b.i18n.Get(lang, "surah.select"), b.getSurahKeyboard(lang, 0))
}

func (b *Bot) commandHelp(_ context.Context, msg *tgbotapi.Message, lang domain.Language) {
	b.sendMessage(msg.Chat.ID, b.i18n.Get(lang, "help.message"))
}

func (b *Bot) commandSurah(_ context.Context, msg *tgbotapi.Message, lang domain.Language) {
	b.sendMessageWithKeyboard(msg.Chat.ID, b.i18n.Get(lang, "surah.select"), b.getSurahKeyboard(lang, 0))
}

func (b *Bot) commandRange(ctx context.Context, msg *tgbotapi.Message, lang domain.Language) {
	args := msg.CommandArguments()
	if args == "" {
		b.sendMessage(msg.Chat.ID, b.i18n.Get(lang, "range.usage"))
		return
	}

	start, end, err := parseRange(args)
	if err != nil {
		b.sendMessage(msg.Chat.ID, b.i18n.Get(lang, "range.usage"))
		return
	}

	target, rng, err := b.nav.RangeTarget(start, end)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidVerseRef) {
			b.log.Warn("range target", "error", err)
		}
		b.sendMessage(msg.Chat.ID, b.i18n.Get(lang, "range.invalid"))
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	b.play(ctx, msg.Chat.ID, b.nav.Preferences(ctx, userID), target, rng)
}

func (b *Bot) commandRepeat(_ context.Context, msg *tgbotapi.Message, lang domain.Language) {
	b.sendMessageWithKeyboard(msg.Chat.ID, b.i18n.Get(lang, "repeat.select"), b.repeatKeyboard(lang))
}

func (b *Bot) commandSpeed(_ context.Context, msg *tgbotapi.Message, lang domain.Language) {
	b.sendMessageWithKeyboard(msg.Chat.ID, b.i18n.Get(lang, "speed.select"), speedKeyboard())
}

func (b *Bot) commandAutoScroll(ctx context.Context, msg *tgbotapi.Message, lang domain.Language) {
	userID := strconv.FormatInt(msg.From.ID, 10)

	prefs, err := b.nav.UpdatePreferences(ctx, userID, func(p *domain.Preferences) { p.AutoScroll = !p.AutoScroll })
	if err != nil {
		b.log.Warn("toggle autoscroll", "user_id", userID, "error", err)
		b.sendMessage(msg.Chat.ID, b.i18n.Get(lang, "error.generic"))
		return
	}
	if s := b.session(msg.Chat.ID); s != nil {
		s.SetAutoScroll(prefs.AutoScroll)
	}

	key := "autoscroll.off"
	if prefs.AutoScroll {
		key = "autoscroll.on"
	}
	b.sendMessage(msg.Chat.ID, b.i18n.Get(lang, key))
}

func (b *Bot) commandStop(_ context.Context, msg *tgbotapi.Message, lang domain.Language) {
	c := b.existingChat(msg.Chat.ID)
	if c == nil || c.player.Current() == nil {
		b.sendMessage(msg.Chat.ID, b.i18n.Get(lang, "playback.nothing"))
		return
	}
	c.player.Release()
}

func (b *Bot) commandLanguage(_ context.Context, msg *tgbotapi.Message, lang domain.Language) {
	b.sendMessageWithKeyboard(msg.Chat.ID, b.i18n.Get(lang, "language.select"), languageKeyboard())
}

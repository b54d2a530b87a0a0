package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/escalopa/quran-navigator/internal/adapter/i18n"
	"github.com/escalopa/quran-navigator/internal/domain"
)

// Callback data prefixes.
const (
	cbLanguage  = "lang"
	cbSurahPage = "spage"
	cbSurah     = "surah"
	cbGoto      = "go"
	cbRepeat    = "repeat"
	cbSpeed     = "speed"
	cbMedia     = "mp"
	cbNoop      = "noop"
)

// Media control actions.
const (
	mediaPrev   = "prev"
	mediaToggle = "toggle"
	mediaNext   = "next"
	mediaStop   = "stop"
)

const (
	surahsPerPage  = 10
	snippetRunes   = 40
	defaultSpeedUI = "1"
)

var speedOptions = []string{"0.75", defaultSpeedUI, "1.25", "1.5"}

func callbackData(prefix, value string) string {
	return prefix + ":" + value
}

// parseCallback splits "prefix:value". The value may itself contain colons.
func parseCallback(data string) (prefix, value string) {
	prefix, value, _ = strings.Cut(data, ":")
	return prefix, value
}

func (b *Bot) getSurahKeyboard(lang domain.Language, page int) tgbotapi.InlineKeyboardMarkup {
	surahs := b.catalog.Surahs()
	totalPages := (len(surahs) + surahsPerPage - 1) / surahsPerPage

	page = max(0, min(page, totalPages-1))
	start := page * surahsPerPage
	end := min(start+surahsPerPage, len(surahs))

	var rows [][]tgbotapi.InlineKeyboardButton

	// Add surah buttons (2 per row)
	for i := start; i < end; i += 2 {
		row := []tgbotapi.InlineKeyboardButton{b.surahButton(lang, surahs[i].ID)}
		if i+1 < end {
			row = append(row, b.surahButton(lang, surahs[i+1].ID))
		}
		rows = append(rows, row)
	}

	if totalPages > 1 {
		var navRow []tgbotapi.InlineKeyboardButton
		if page > 0 {
			navRow = append(navRow, tgbotapi.NewInlineKeyboardButtonData("⬅️ "+b.i18n.Get(lang, "nav.prev"), callbackData(cbSurahPage, strconv.Itoa(page-1))))
		}
		navRow = append(navRow, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%d/%d", page+1, totalPages),
			cbNoop,
		))
		if page < totalPages-1 {
			navRow = append(navRow, tgbotapi.NewInlineKeyboardButtonData(b.i18n.Get(lang, "nav.next")+" ➡️", callbackData(cbSurahPage, strconv.Itoa(page+1))))
		}
		rows = append(rows, navRow)
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) surahButton(lang domain.Language, id int) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(
		i18n.FormatSurahButton(lang, b.i18n, id),
		callbackData(cbSurah, strconv.Itoa(id)),
	)
}

func suggestionsKeyboard(results []domain.RankedResult) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(results))
	for _, r := range results {
		label := r.VerseKey.String()
		if text := firstNonEmpty(r.Translation, r.Text); text != "" {
			label += " · " + truncate(text, snippetRunes)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackData(cbGoto, r.VerseKey.String())),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) repeatKeyboard(lang domain.Language) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, n := range domain.RepeatOptions {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.repeatLabel(lang, n), callbackData(cbRepeat, strconv.Itoa(n))))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func (b *Bot) repeatLabel(lang domain.Language, n int) string {
	if n == domain.RepeatForever {
		return "∞ " + b.i18n.Get(lang, "repeat.forever")
	}
	return "×" + strconv.Itoa(n)
}

func speedKeyboard() tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, s := range speedOptions {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(s+"x", callbackData(cbSpeed, s)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func languageKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🇬🇧 English", callbackData(cbLanguage, string(domain.LangEnglish))),
			tgbotapi.NewInlineKeyboardButtonData("🇸🇦 العربية", callbackData(cbLanguage, string(domain.LangArabic))),
			tgbotapi.NewInlineKeyboardButtonData("🇷🇺 Русский", callbackData(cbLanguage, string(domain.LangRussian))),
		),
	)
}

func mediaKeyboard(playing bool) tgbotapi.InlineKeyboardMarkup {
	toggle := "▶️"
	if playing {
		toggle = "⏸"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏮", callbackData(cbMedia, mediaPrev)),
			tgbotapi.NewInlineKeyboardButtonData(toggle, callbackData(cbMedia, mediaToggle)),
			tgbotapi.NewInlineKeyboardButtonData("⏭", callbackData(cbMedia, mediaNext)),
			tgbotapi.NewInlineKeyboardButtonData("⏹", callbackData(cbMedia, mediaStop)),
		),
	)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}

// parseRange reads "/range" arguments: "2:1 2:5" or "2:1-2:5".
func parseRange(args string) (domain.VerseRef, domain.VerseRef, error) {
	fields := strings.FieldsFunc(args, func(r rune) bool {
		return r == ' ' || r == '-' || r == '\t' || r == ','
	})
	if len(fields) != 2 {
		return domain.VerseRef{}, domain.VerseRef{}, fmt.Errorf("range %q: %w", args, domain.ErrInvalidVerseRef)
	}
	start, err := domain.ParseVerseRef(fields[0])
	if err != nil {
		return domain.VerseRef{}, domain.VerseRef{}, err
	}
	end, err := domain.ParseVerseRef(fields[1])
	if err != nil {
		return domain.VerseRef{}, domain.VerseRef{}, err
	}
	return start, end, nil
}

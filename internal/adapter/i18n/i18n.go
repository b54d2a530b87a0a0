package i18n

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/escalopa/quran-navigator/internal/domain"
)

//go:embed locales/*.yaml
var locales embed.FS

type I18n struct {
	translations map[domain.Language]map[string]string
	catalog      *domain.Catalog
}

type translationFile struct {
	Messages map[string]string `yaml:"messages"`
}

// NewI18n loads the embedded locales. Surah names come from catalog.
func NewI18n(catalog *domain.Catalog) (*I18n, error) {
	i18n := &I18n{
		translations: make(map[domain.Language]map[string]string),
		catalog:      catalog,
	}

	languages := []domain.Language{domain.LangEnglish, domain.LangArabic, domain.LangRussian}
	for _, lang := range languages {
		if err := i18n.loadTranslations(lang, path.Join("locales", string(lang)+".yaml")); err != nil {
			return nil, fmt.Errorf("load %s translations: %w", lang, err)
		}
	}

	return i18n, nil
}

func (i *I18n) loadTranslations(lang domain.Language, filename string) error {
	data, err := locales.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	var tf translationFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("unmarshal yaml: %w", err)
	}
	if len(tf.Messages) == 0 {
		return fmt.Errorf("no messages in %s", filename)
	}

	i.translations[lang] = tf.Messages
	return nil
}

// Get retrieves a translated message, falling back to English and then to
// the key itself
func (i *I18n) Get(lang domain.Language, key string, args ...any) string {
	msg, ok := i.translations[lang][key]
	if !ok {
		msg, ok = i.translations[domain.LangEnglish][key]
	}
	if !ok {
		return key
	}

	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return msg
}

// GetSurahName retrieves the localized name of a Surah
func (i *I18n) GetSurahName(lang domain.Language, surahNumber int) string {
	entry, ok := i.catalog.Surah(surahNumber)
	if !ok {
		return fmt.Sprintf("Surah %d", surahNumber)
	}
	if lang == domain.LangArabic {
		return entry.ArabicName
	}
	return entry.SimpleName
}

// FormatSurahButton formats a surah button text with number and name
func FormatSurahButton(lang domain.Language, i18n domain.I18nPort, surahNumber int) string {
	name := i18n.GetSurahName(lang, surahNumber)
	return fmt.Sprintf("%d. %s", surahNumber, strings.TrimSpace(name))
}

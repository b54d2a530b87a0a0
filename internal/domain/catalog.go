package domain

import (
	_ "embed"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML string

// SurahCatalogEntry is a static catalog record for one surah.
type SurahCatalogEntry struct {
	ID         int      `yaml:"id"`
	ArabicName string   `yaml:"arabic"`
	SimpleName string   `yaml:"simple"`
	Ayahs      int      `yaml:"ayahs"`
	Aliases    []string `yaml:"aliases"`
}

// Catalog is the immutable surah and juz reference catalog. It is safe for
// concurrent use: nothing mutates it after construction.
type Catalog struct {
	surahs    []SurahCatalogEntry
	juzStarts []VerseRef
}

type catalogFile struct {
	Surahs    []SurahCatalogEntry `yaml:"surahs"`
	JuzStarts []string            `yaml:"juz_starts"`
}

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the embedded catalog, parsed on first use.
// Panics if the embedded document is invalid, which is a build defect.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		c, err := LoadCatalog(strings.NewReader(catalogYAML))
		if err != nil {
			panic("domain: embedded catalog: " + err.Error())
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// LoadCatalog decodes and validates a catalog YAML document.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	if len(f.Surahs) != MaxSurah {
		return nil, fmt.Errorf("catalog has %d surahs, want %d", len(f.Surahs), MaxSurah)
	}
	for i, s := range f.Surahs {
		if s.ID != i+1 {
			return nil, fmt.Errorf("catalog entry %d has id %d", i, s.ID)
		}
		if s.Ayahs < 1 {
			return nil, fmt.Errorf("surah %d has no ayahs", s.ID)
		}
	}

	if len(f.JuzStarts) != JuzCount {
		return nil, fmt.Errorf("catalog has %d juz starts, want %d", len(f.JuzStarts), JuzCount)
	}
	starts := make([]VerseRef, 0, JuzCount)
	for i, key := range f.JuzStarts {
		ref, err := ParseVerseRef(key)
		if err != nil {
			return nil, fmt.Errorf("juz %d start: %w", i+1, err)
		}
		if i > 0 && !starts[i-1].Before(ref) {
			return nil, fmt.Errorf("juz %d start %s is not after juz %d", i+1, ref, i)
		}
		starts = append(starts, ref)
	}

	return &Catalog{surahs: f.Surahs, juzStarts: starts}, nil
}

// Surahs returns all catalog entries in order. The returned slice must not be modified.
func (c *Catalog) Surahs() []SurahCatalogEntry {
	return c.surahs
}

// Surah returns the entry for the given surah number.
func (c *Catalog) Surah(id int) (SurahCatalogEntry, bool) {
	if id < MinSurah || id > len(c.surahs) {
		return SurahCatalogEntry{}, false
	}
	return c.surahs[id-1], true
}

// Contains reports whether ref names an existing verse of the catalog.
func (c *Catalog) Contains(ref VerseRef) bool {
	s, ok := c.Surah(ref.Surah)
	return ok && ref.Ayah >= 1 && ref.Ayah <= s.Ayahs
}

// JuzOf returns the juz number containing ref.
func (c *Catalog) JuzOf(ref VerseRef) int {
	juz := 1
	for i, start := range c.juzStarts {
		if start.Before(ref) || start == ref {
			juz = i + 1
		}
	}
	return juz
}

// SurahPlaylist returns all verses of a surah in order.
func (c *Catalog) SurahPlaylist(id int) (Playlist, error) {
	s, ok := c.Surah(id)
	if !ok {
		return Playlist{}, fmt.Errorf("%w: surah %d", ErrInvalidVerseRef, id)
	}
	keys := make([]VerseRef, 0, s.Ayahs)
	for a := 1; a <= s.Ayahs; a++ {
		keys = append(keys, VerseRef{Surah: id, Ayah: a})
	}
	return NewPlaylist(keys), nil
}

// JuzPlaylist returns all verses of a juz in order, spanning surah boundaries.
func (c *Catalog) JuzPlaylist(juz int) (Playlist, error) {
	if juz < 1 || juz > JuzCount {
		return Playlist{}, fmt.Errorf("%w: juz %d", ErrInvalidVerseRef, juz)
	}
	start := c.juzStarts[juz-1]
	end := VerseRef{Surah: MaxSurah, Ayah: c.surahs[MaxSurah-1].Ayahs}
	if juz < JuzCount {
		end = c.prev(c.juzStarts[juz])
	}
	return c.RangePlaylist(start, end)
}

// RangePlaylist returns the verses from start to end inclusive in mushaf order.
func (c *Catalog) RangePlaylist(start, end VerseRef) (Playlist, error) {
	if !c.Contains(start) || !c.Contains(end) {
		return Playlist{}, fmt.Errorf("%w: range %s-%s", ErrInvalidVerseRef, start, end)
	}
	if end.Before(start) {
		return Playlist{}, fmt.Errorf("%w: range end %s before start %s", ErrInvalidVerseRef, end, start)
	}
	var keys []VerseRef
	for ref := start; ; ref = c.next(ref) {
		keys = append(keys, ref)
		if ref == end {
			break
		}
	}
	return NewPlaylist(keys), nil
}

func (c *Catalog) next(ref VerseRef) VerseRef {
	if ref.Ayah < c.surahs[ref.Surah-1].Ayahs {
		return VerseRef{Surah: ref.Surah, Ayah: ref.Ayah + 1}
	}
	return VerseRef{Surah: ref.Surah + 1, Ayah: 1}
}

func (c *Catalog) prev(ref VerseRef) VerseRef {
	if ref.Ayah > 1 {
		return VerseRef{Surah: ref.Surah, Ayah: ref.Ayah - 1}
	}
	return VerseRef{Surah: ref.Surah - 1, Ayah: c.surahs[ref.Surah-2].Ayahs}
}

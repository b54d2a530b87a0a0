package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// MinSurah and MaxSurah bound the surah numbers of the catalog.
	MinSurah = 1
	MaxSurah = 114

	// JuzCount is the number of standard juz divisions.
	JuzCount = 30
)

// VerseRef identifies a single verse as surah and ayah number.
// Ayah existence is not validated locally.
type VerseRef struct {
	Surah int
	Ayah  int
}

// NewVerseRef returns a VerseRef after checking the surah bounds and that the
// ayah number is positive.
func NewVerseRef(surah, ayah int) (VerseRef, error) {
	ref := VerseRef{Surah: surah, Ayah: ayah}
	if !ref.Valid() {
		return VerseRef{}, fmt.Errorf("%w: %d:%d", ErrInvalidVerseRef, surah, ayah)
	}
	return ref, nil
}

// ParseVerseRef parses a "surah:ayah" verse key.
func ParseVerseRef(key string) (VerseRef, error) {
	s, a, ok := strings.Cut(strings.TrimSpace(key), ":")
	if !ok {
		return VerseRef{}, fmt.Errorf("%w: %q", ErrInvalidVerseRef, key)
	}
	surah, err := strconv.Atoi(s)
	if err != nil {
		return VerseRef{}, fmt.Errorf("%w: %q", ErrInvalidVerseRef, key)
	}
	ayah, err := strconv.Atoi(a)
	if err != nil {
		return VerseRef{}, fmt.Errorf("%w: %q", ErrInvalidVerseRef, key)
	}
	return NewVerseRef(surah, ayah)
}

// Valid reports whether the surah is within catalog bounds and the ayah is positive.
func (v VerseRef) Valid() bool {
	return v.Surah >= MinSurah && v.Surah <= MaxSurah && v.Ayah >= 1
}

// IsZero reports whether v is the zero value (no verse).
func (v VerseRef) IsZero() bool {
	return v.Surah == 0 && v.Ayah == 0
}

// String returns the verse key in "surah:ayah" form.
func (v VerseRef) String() string {
	return strconv.Itoa(v.Surah) + ":" + strconv.Itoa(v.Ayah)
}

// Before reports whether v precedes o in mushaf order.
func (v VerseRef) Before(o VerseRef) bool {
	if v.Surah != o.Surah {
		return v.Surah < o.Surah
	}
	return v.Ayah < o.Ayah
}

// FileCode returns the zero-padded SSSAAA code used by audio mirrors.
func (v VerseRef) FileCode() string {
	return fmt.Sprintf("%03d%03d", v.Surah, v.Ayah)
}

// MarshalText encodes v as its verse key.
func (v VerseRef) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText parses a verse key.
func (v *VerseRef) UnmarshalText(b []byte) error {
	ref, err := ParseVerseRef(string(b))
	if err != nil {
		return err
	}
	*v = ref
	return nil
}

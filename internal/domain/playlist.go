package domain

// Playlist is an immutable ordered list of verses defining document order for
// a playback context (a surah, a juz, or a bounded range).
type Playlist struct {
	keys  []VerseRef
	index map[VerseRef]int
}

// NewPlaylist builds a playlist from keys. Duplicate keys keep their first position.
func NewPlaylist(keys []VerseRef) Playlist {
	p := Playlist{
		keys:  make([]VerseRef, len(keys)),
		index: make(map[VerseRef]int, len(keys)),
	}
	copy(p.keys, keys)
	for i, k := range p.keys {
		if _, ok := p.index[k]; !ok {
			p.index[k] = i
		}
	}
	return p
}

// Len returns the number of verses.
func (p Playlist) Len() int { return len(p.keys) }

// At returns the verse at position i.
func (p Playlist) At(i int) (VerseRef, bool) {
	if i < 0 || i >= len(p.keys) {
		return VerseRef{}, false
	}
	return p.keys[i], true
}

// IndexOf returns the position of ref.
func (p Playlist) IndexOf(ref VerseRef) (int, bool) {
	i, ok := p.index[ref]
	return i, ok
}

// Contains reports whether ref is part of the playlist.
func (p Playlist) Contains(ref VerseRef) bool {
	_, ok := p.index[ref]
	return ok
}

// Next returns the verse following ref.
func (p Playlist) Next(ref VerseRef) (VerseRef, bool) {
	i, ok := p.index[ref]
	if !ok {
		return VerseRef{}, false
	}
	return p.At(i + 1)
}

// Prev returns the verse preceding ref.
func (p Playlist) Prev(ref VerseRef) (VerseRef, bool) {
	i, ok := p.index[ref]
	if !ok {
		return VerseRef{}, false
	}
	return p.At(i - 1)
}

// First returns the first verse.
func (p Playlist) First() (VerseRef, bool) { return p.At(0) }

// Last returns the last verse.
func (p Playlist) Last() (VerseRef, bool) { return p.At(len(p.keys) - 1) }

package domain

import "errors"

var (
	// ErrInvalidVerseRef is returned when a verse key is malformed or out of bounds.
	ErrInvalidVerseRef = errors.New("invalid verse reference")

	// ErrClipUnavailable means the clip source has no playable URL for a verse.
	ErrClipUnavailable = errors.New("clip unavailable")

	// ErrDecodeOrNetwork means the active clip failed while loading or playing.
	ErrDecodeOrNetwork = errors.New("clip decode or network failure")

	// ErrSearchUnavailable means the remote search request failed or returned invalid data.
	ErrSearchUnavailable = errors.New("search unavailable")

	// ErrSuperseded is returned for an asynchronous request that a newer one replaced.
	ErrSuperseded = errors.New("request superseded")

	// ErrSessionClosed is returned by operations on a released playback session.
	ErrSessionClosed = errors.New("playback session closed")

	// ErrNotFound is returned by stores when a key has no value.
	ErrNotFound = errors.New("not found")
)

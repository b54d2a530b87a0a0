package playback

import (
	"time"

	"github.com/escalopa/quran-navigator/internal/domain"
)

// EventKind identifies an output event.
type EventKind int

const (
	// EventEnded reports that the media played to its end.
	EventEnded EventKind = iota
	// EventError reports a decode or network failure of the loaded media.
	EventError
	// EventProgress reports the playback position.
	EventProgress
)

// Event is delivered by an [Output] to the callback registered for the
// current media.
type Event struct {
	Kind     EventKind
	Position time.Duration
	Duration time.Duration
	Err      error
}

// Source is the media handed to an [Output]. Buffer is set when the bytes were
// preloaded; otherwise the output loads URL itself.
type Source struct {
	Key    domain.VerseRef
	URL    string
	Buffer domain.Buffer
}

// Output is one audio output resource. Implementations must deliver events
// asynchronously, never from inside an Output method, and must be done with
// Source.Buffer when Load returns.
type Output interface {
	// Load replaces the current media. Events for it go to onEvent.
	Load(src Source, onEvent func(Event)) error
	Play(speed float64) error
	Pause() error
	Resume() error
	// SeekStart restarts the current media from the beginning and routes its
	// further events to onEvent.
	SeekStart(onEvent func(Event)) error
	// SetSpeed changes the rate of the media being played without restarting it.
	SetSpeed(speed float64) error
	Close() error
}

// MediaPlaybackState is the now-playing state published to the media host.
type MediaPlaybackState string

const (
	MediaNone    MediaPlaybackState = "none"
	MediaPlaying MediaPlaybackState = "playing"
	MediaPaused  MediaPlaybackState = "paused"
)

// MediaMetadata describes the clip being played.
type MediaMetadata struct {
	Title  string
	Album  string
	Artist string
}

// MediaHandlers route host controls back into the session.
type MediaHandlers struct {
	Play     func()
	Pause    func()
	Next     func()
	Previous func()
}

// MediaSession is the host of now-playing metadata and transport controls.
// Methods must not block and must not call handlers synchronously.
type MediaSession interface {
	Supported() bool
	SetMetadata(MediaMetadata)
	SetHandlers(MediaHandlers)
	SetPlaybackState(MediaPlaybackState)
}

// Scroller brings a verse into view.
type Scroller interface {
	ScrollTo(ref domain.VerseRef)
}

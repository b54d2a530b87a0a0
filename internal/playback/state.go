package playback

import "github.com/escalopa/quran-navigator/internal/domain"

// State is the playback state of a session.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateEnded
	StateRangeBoundary
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateRangeBoundary:
		return "range_boundary"
	default:
		return "idle"
	}
}

// stopped reports whether playback reached a natural stop.
func (s State) stopped() bool {
	return s == StateEnded || s == StateRangeBoundary
}

// Range bounds playback to the verses from Start to End inclusive.
type Range struct {
	Start domain.VerseRef
	End   domain.VerseRef
}

// Snapshot is a point-in-time copy of session state.
type Snapshot struct {
	ID          string
	State       State
	Current     domain.VerseRef
	Repeat      int
	RepeatsDone int
	Speed       float64
	AutoScroll  bool
	Range       *Range
	Preloaded   domain.VerseRef
}

type decision int

const (
	decisionRepeat decision = iota
	decisionRangeEnd
	decisionPlaylistEnd
	decisionAdvance
)

func (d decision) String() string {
	switch d {
	case decisionRepeat:
		return "repeat"
	case decisionRangeEnd:
		return "range_end"
	case decisionPlaylistEnd:
		return "playlist_end"
	default:
		return "advance"
	}
}

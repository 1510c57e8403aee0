package ui

// Stage is the state of one recording while a command runs.
type Stage uint8

const (
	StageQueued Stage = iota
	StageOpening
	StageReading
	StageDone
	StageError
)

func (s Stage) String() string {
	switch s {
	case StageQueued:
		return "queued"
	case StageOpening:
		return "opening"
	case StageReading:
		return "reading"
	case StageDone:
		return "done"
	case StageError:
		return "error"
	}
	return ""
}

// Event updates the progress view. An empty File reports overall progress.
type Event struct {
	File     string
	Stage    Stage
	Records  int64
	Fraction float64 // overall completion, used when File is empty
}

// ChannelSink forwards events to a channel without blocking the caller;
// events are dropped when the view falls behind.
type ChannelSink struct {
	Ch chan<- Event
}

// Emit sends ev if there is room.
func (s ChannelSink) Emit(ev Event) {
	if s.Ch == nil {
		return
	}
	select {
	case s.Ch <- ev:
	default:
	}
}

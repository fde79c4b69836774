package types

// UnitMessage is the single terminal message a dispatch unit emits.
// Exactly one of Result or Err is meaningful.
type UnitMessage struct {
	JobID        string
	Result       string
	ArtifactPath string
	Err          string
}

// Failed reports whether the message carries an error.
func (m UnitMessage) Failed() bool {
	return m.Err != ""
}

// Exit codes reported by a dispatch unit when it terminates.
const (
	ExitOK       = 0
	ExitPanic    = 1
	ExitNoResult = 2
)

// UnitExit is the termination signal of a dispatch unit. Message is nil when the
// unit terminated without emitting a terminal message.
type UnitExit struct {
	JobID   string
	Input   int64
	Code    int
	Message *UnitMessage
}

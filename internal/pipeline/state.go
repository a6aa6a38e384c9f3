package pipeline

import "fmt"

// State is one step of an export. Exactly one of Completed, Failed and
// Cancelled ends every export.
type State interface {
	Terminal() bool
	String() string
	state()
}

type Preparing struct{}

// Encoding reports progress in percent. Stage is "video" or "audio".
type Encoding struct {
	Percent float64
	Stage   string
}

type Finalizing struct{}

type Completed struct {
	OutputPath string
	FileSize   int64
}

// Failed carries a readable message for the caller to present.
type Failed struct {
	Message string
	Kind    ErrorKind
}

type Cancelled struct{}

func (Preparing) Terminal() bool { return false }
func (Encoding) Terminal() bool { return false }
func (Finalizing) Terminal() bool { return false }
func (Completed) Terminal() bool { return true }
func (Failed) Terminal() bool { return true }
func (Cancelled) Terminal() bool { return true }

func (Preparing) String() string { return "preparing" }
func (s Encoding) String() string { return fmt.Sprintf("encoding %s %.1f%%", s.Stage, s.Percent) }
func (Finalizing) String() string { return "finalizing" }
func (s Completed) String() string { return fmt.Sprintf("completed %s (%d bytes)", s.OutputPath, s.FileSize) }
func (s Failed) String() string { return fmt.Sprintf("error (%s): %s", s.Kind, s.Message) }
func (Cancelled) String() string { return "cancelled" }

func (Preparing) state() {}
func (Encoding) state() {}
func (Finalizing) state() {}
func (Completed) state() {}
func (Failed) state() {}
func (Cancelled) state() {}

// Percent returns the overall progress a state implies.
func Percent(s State) float64 {
	switch v := s.(type) {
	case Encoding:
		return v.Percent
	case Finalizing:
		return audioEnd
	case Completed:
		return 100
	default:
		return 0
	}
}

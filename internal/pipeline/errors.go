package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrorKind classifies export failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindSource
	KindCodec
	KindPermission
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindCodec:
		return "codec"
	case KindPermission:
		return "permission"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var (
	ErrNoVideoTrack = errors.New("no video track")
	ErrCancelled    = errors.New("export cancelled")
	ErrNoOutput     = errors.New("encoder produced no output")
)

// Error is a classified pipeline failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func sourceErr(op string, err error) error { return classify(KindSource, op, err) }
func codecErr(op string, err error) error  { return classify(KindCodec, op, err) }

// classify tags err with kind unless the filesystem refused access, which
// is reported as KindPermission whichever stage hit it.
func classify(kind ErrorKind, op string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		kind = KindPermission
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain. Cancellation
// is recognised even when it was never wrapped.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, ErrCancelled) {
		return KindCancelled
	}
	return KindUnknown
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

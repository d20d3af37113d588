package post

import (
	"errors"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindDelivery
	KindPersistence
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDelivery:
		return "delivery"
	case KindPersistence:
		return "persistence"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

var (
	ErrPastTime             = errors.New("selected time is in the past")
	ErrNoMessages           = errors.New("no messages collected")
	ErrNoChannelsSelected   = errors.New("no channels selected")
	ErrNoChannelsRegistered = errors.New("no channels registered")
	ErrUnknownChannel       = errors.New("unknown channel")
	ErrBadDateTime          = errors.New("invalid date/time, expected YYYY-MM-DD HH:MM")
	ErrBadClock             = errors.New("invalid time, expected HH:MM")
)

// Error classifies a failure so callers can decide whether to re-prompt,
// log and skip, or surface it.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
		if e.Err != nil {
			b.WriteString(": ")
		}
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

func Delivery(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindDelivery, Op: op, Err: err}
}

func Validation(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// UserMessage returns the text shown to the operator for a validation error.
func UserMessage(err error) string {
	for _, s := range []error{ErrPastTime, ErrNoMessages, ErrNoChannelsSelected, ErrNoChannelsRegistered, ErrUnknownChannel, ErrBadDateTime, ErrBadClock} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	if KindOf(err) == KindValidation {
		return err.Error()
	}
	return "something went wrong, please try again"
}

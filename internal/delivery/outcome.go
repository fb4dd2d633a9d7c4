package delivery

import "fmt"

// Status classifies one delivery attempt.
type Status int

const (
	Success Status = iota
	TransientFailure
	PermanentFailure
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case TransientFailure:
		return "transient"
	case PermanentFailure:
		return "permanent"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MsgGone is the message of every permanent outcome.
const MsgGone = "destination gone"

// Outcome is the classified result of one delivery.
type Outcome struct {
	Status  Status
	Code    int // HTTP status; 0 when no response was received
	Message string
	Err     error // underlying cause for transient failures, if any
}

func (o Outcome) OK() bool   { return o.Status == Success }
func (o Outcome) Gone() bool { return o.Status == PermanentFailure }

func (o Outcome) String() string {
	if o.Message == "" {
		return o.Status.String()
	}
	return o.Status.String() + ": " + o.Message
}

func succeeded(code int) Outcome { return Outcome{Status: Success, Code: code} }

func gone(code int) Outcome {
	return Outcome{Status: PermanentFailure, Code: code, Message: MsgGone}
}

func transient(code int, msg string, err error) Outcome {
	return Outcome{Status: TransientFailure, Code: code, Message: msg, Err: err}
}

package submit

import (
	"fmt"

	"rollcall/internal/status"
)

// Kind classifies a submission result.
type Kind string

const (
	KindMarked           Kind = "marked"
	KindAlreadyMarked    Kind = "already_marked"
	KindRejected         Kind = "rejected"
	KindTransportFailure Kind = "transport_failure"
)

const (
	// DefaultRejectMessage is shown when the endpoint refuses without a message.
	DefaultRejectMessage = "Could not mark attendance."
	// NetworkErrorMessage is shown when no usable response arrived.
	NetworkErrorMessage = "Network error while sending QR data."
)

// Outcome is the interpreted result of one submission. Student is only set
// for KindMarked and KindAlreadyMarked.
type Outcome struct {
	Kind    Kind
	Student string
	Message string
	// Status is the server-reported status string, kept for the journal.
	Status string
	// HTTPStatus is zero when the request never completed.
	HTTPStatus int
	// Err carries the transport or decode failure behind KindTransportFailure.
	Err error
}

// Marked builds a successful outcome.
func Marked(student, message string) Outcome {
	return Outcome{Kind: KindMarked, Student: student, Message: message, Status: "marked"}
}

// AlreadyMarked builds a non-marked acknowledgement.
func AlreadyMarked(student, message string) Outcome {
	return Outcome{Kind: KindAlreadyMarked, Student: student, Message: message}
}

// Rejected builds a refusal outcome.
func Rejected(message string) Outcome {
	if message == "" {
		message = DefaultRejectMessage
	}
	return Outcome{Kind: KindRejected, Message: message}
}

// TransportFailure builds a network failure outcome.
func TransportFailure(err error) Outcome {
	return Outcome{Kind: KindTransportFailure, Message: NetworkErrorMessage, Err: err}
}

// EndsSession reports whether the outcome completes the scan and should reset
// the session.
func (o Outcome) EndsSession() bool {
	return o.Kind == KindMarked || o.Kind == KindAlreadyMarked
}

// Display renders the outcome as a status line.
func (o Outcome) Display() status.Display {
	switch o.Kind {
	case KindMarked:
		return status.Display{Message: withStudent(o.Message, o.Student), Category: status.Success}
	case KindAlreadyMarked:
		return status.Display{Message: withStudent(o.Message, o.Student), Category: status.Warning}
	case KindRejected:
		msg := o.Message
		if msg == "" {
			msg = DefaultRejectMessage
		}
		return status.Display{Message: msg, Category: status.Error}
	default:
		return status.Display{Message: NetworkErrorMessage, Category: status.Error}
	}
}

func withStudent(message, student string) string {
	return fmt.Sprintf("%s (%s)", message, student)
}

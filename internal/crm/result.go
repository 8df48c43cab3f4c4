package crm

import "time"

// Kind classifies a delivery outcome for the error taxonomy: auth problems
// are configuration, payload problems are our bug, API/transport problems are
// worth a retry.
type Kind int

const (
	KindNone Kind = iota
	KindAuth
	KindPayload
	KindDuplicate
	KindTransport
	KindAPI
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindAuth:
		return "auth"
	case KindPayload:
		return "payload"
	case KindDuplicate:
		return "duplicate"
	case KindTransport:
		return "transport"
	case KindAPI:
		return "api"
	default:
		return "unknown"
	}
}

// Result is one delivery outcome, with the raw request/response captured for
// the ledger.
type Result struct {
	Success      bool
	ContactID    string
	Kind         Kind
	ErrorMessage string
	StatusCode   int
	RequestBody  string
	ResponseBody string
	AttemptedAt  time.Time
}

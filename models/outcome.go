package models

import "fmt"

// OutcomeKind classifies the result of a page fetch. RateLimited,
// HTTPError, and TransportError describe individual attempts;
// Fetch itself only ever returns Success or Exhausted.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRateLimited
	OutcomeHTTPError
	OutcomeTransportError
	OutcomeExhausted
)

// String returns the label used in logs and metric dimensions.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeHTTPError:
		return "http_error"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// FetchOutcome is the terminal result of fetching one URL. Body is set
// only on Success; Status carries the last HTTP status observed, and
// Reason describes the last failure when Kind is Exhausted.
type FetchOutcome struct {
	Kind   OutcomeKind
	Body   string
	Status int
	Reason string
}

// OK reports whether the fetch produced a usable body.
func (o FetchOutcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

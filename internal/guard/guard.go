// Package guard holds small admission controls: delivery de-duplication,
// request rate limiting and a circuit breaker for outbound publishing.
package guard

// Result is the outcome of a guard check.
type Result struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Guard   string `json:"guard,omitempty"` // which guard blocked
}

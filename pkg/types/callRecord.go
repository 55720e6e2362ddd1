package types

import "strings"

// CallType is the invocation kind recorded by the tracer ("call", "delegatecall", ...).
type CallType string

const (
	// CallTypeCall is a direct invocation; only these contribute fill and update counts.
	CallTypeCall CallType = "call"
)

// CallRecord is one line of the recorded call log.
type CallRecord struct {
	Timestamp     float64  `json:"timestamp"`
	FromAddress   string   `json:"fromAddress"`
	ToAddress     string   `json:"toAddress"`
	CalleeAddress string   `json:"calleeAddress"`
	CallData      string   `json:"callData"`
	CallType      CallType `json:"callType"`
}

// IsDirect reports whether the call target is also the callee, i.e. no
// contract sat between the sender and the exchange.
func (r *CallRecord) IsDirect() bool {
	return strings.EqualFold(r.ToAddress, r.CalleeAddress)
}

// CallerAddress groups calls by their top-level origin. Direct calls belong to
// the sender; proxied calls belong to the contract that was called so every
// call funneled through it lands in the same aggregate.
func (r *CallRecord) CallerAddress() string {
	if r.IsDirect() {
		return r.FromAddress
	}
	return r.ToAddress
}

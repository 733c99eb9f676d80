// Package validator implements consensus-facing block validation: header
// rules relative to the parent, sequencer signature checks, the weighted
// vote gate, and the state-transition re-execution check.
package validator

import "fmt"

// Code classifies a validation outcome.
type Code int

const (
	CodeOK Code = iota
	CodeBadStructure
	CodeBadNumber
	CodeBadParentHash
	CodeBadTimestamp
	CodeBadGasLimit
	CodeBadChainID
	CodeBadSignature
	CodeDuplicateSignature
	CodeUnknownSigner
	CodeBadTransaction
	CodeStateMismatch
	CodeConsensusInsufficient
)

// String implements fmt.Stringer.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeBadStructure:
		return "bad-structure"
	case CodeBadNumber:
		return "bad-number"
	case CodeBadParentHash:
		return "bad-parent-hash"
	case CodeBadTimestamp:
		return "bad-timestamp"
	case CodeBadGasLimit:
		return "bad-gas-limit"
	case CodeBadChainID:
		return "bad-chain-id"
	case CodeBadSignature:
		return "bad-signature"
	case CodeDuplicateSignature:
		return "duplicate-signature"
	case CodeUnknownSigner:
		return "unknown-signer"
	case CodeBadTransaction:
		return "bad-transaction"
	case CodeStateMismatch:
		return "state-mismatch"
	case CodeConsensusInsufficient:
		return "consensus-insufficient"
	default:
		return "unknown"
	}
}

// Result is a typed validation outcome: a validity flag, a reason code,
// and the offending index where applicable. Index is -1 when the failure
// is not tied to a list element.
type Result struct {
	Valid bool
	Code  Code
	Index int
	Msg   string
}

func ok() Result {
	return Result{Valid: true, Code: CodeOK, Index: -1}
}

func fail(code Code, index int, format string, args ...any) Result {
	return Result{Valid: false, Code: code, Index: index, Msg: fmt.Sprintf(format, args...)}
}

// Status tracks a block candidate through consensus.
type Status int

const (
	StatusProposed Status = iota
	StatusConsensusPending
	StatusFinalized
	StatusRejected
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusProposed:
		return "PROPOSED"
	case StatusConsensusPending:
		return "CONSENSUS_PENDING"
	case StatusFinalized:
		return "FINALIZED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

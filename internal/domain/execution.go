package domain

import "time"

// SubmitMethod records which path actually carried a signed transaction.
type SubmitMethod string

const (
	MethodBundle      SubmitMethod = "bundle"
	MethodPrivatePool SubmitMethod = "private_pool"
	MethodStandardRPC SubmitMethod = "standard_rpc"
)

// ProtectionLevel buckets an execution's MEV exposure from its size and
// expected profit, gating whether the private-pool path is attempted.
type ProtectionLevel string

const (
	ProtectionHigh   ProtectionLevel = "HIGH"
	ProtectionMedium ProtectionLevel = "MEDIUM"
	ProtectionLow    ProtectionLevel = "LOW"
)

// ProtectionParams are derived once per execution from its size and expected
// profit, then held fixed for every submission path attempted.
type ProtectionParams struct {
	Priority        uint64
	SendDelay       time.Duration
	BundleTip       float64
	ProtectionLevel ProtectionLevel
}

// ExecutionResult is the transport's outcome for one signed transaction
// submission. The transport never returns an error across its boundary;
// failure is represented by Success=false and a populated ErrorKind.
type ExecutionResult struct {
	Success   bool
	TxID      string
	ErrorKind string
	Method    SubmitMethod
}

// MEVObservation is a purely diagnostic, append-only record of a completed
// execution's post-send behavior; it never feeds back into control flow.
type MEVObservation struct {
	TxID           string
	ExpectedProfit float64
	Size           *RawAmount
	ObservedAt     time.Time
}

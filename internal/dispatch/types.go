// Package dispatch is the erase-execution boundary. The core hands
// structured PassSpec values to an Executor and receives PassResults; it
// never builds platform tool command lines itself.
package dispatch

import (
	"time"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/device"
)

// Method names a requested erasure method.
type Method string

const (
	MethodZero        Method = "zero"
	MethodOne         Method = "one"
	MethodRandom      Method = "random"
	MethodDOD5220     Method = "dod5220"
	MethodSecureErase Method = "secure-erase"
)

// Pattern is the data source for a single pass.
type Pattern string

const (
	PatternZeros       Pattern = "zeros"
	PatternOnes        Pattern = "ones"
	PatternRandom      Pattern = "random"
	PatternSecureErase Pattern = "secure-erase"
)

// WipeRequest describes one wipe operation against one device.
type WipeRequest struct {
	Device device.Device
	Method Method
	Passes int
	Verify bool

	RemoveHiddenAreas          bool
	ForceDCO                   bool
	RequireHiddenAreaClearance bool

	// TolerateEraseFailure opts into best-effort wiping: a failed pass no
	// longer halts the operation. Off by default because a skipped pass
	// breaks the guarantee the certificate attests to.
	TolerateEraseFailure bool

	// Operator is recorded on the certificate for accountability; it has
	// no effect on authorization.
	Operator string

	AllowSystemDisk bool
	ConfirmToken    string
	// OverrideToken is the second, distinct token required to wipe a
	// system disk. Ignored unless AllowSystemDisk is set.
	OverrideToken string

	// PreWipeDigests are optional SHA-256 hex digests of pre-wipe content
	// samples; verification fails any sample whose digest matches.
	PreWipeDigests []string
}

// PassSpec is one planned overwrite sweep.
type PassSpec struct {
	Index             int           `json:"index"`
	Method            Method        `json:"method"`
	Pattern           Pattern       `json:"pattern"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
	Timeout           time.Duration `json:"timeout"`
}

// PassPlan is the ordered list of passes for a request.
type PassPlan struct {
	Passes []PassSpec `json:"passes"`
}

// Outcome classifies a finished pass.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomePartial Outcome = "PARTIAL"
	OutcomeFailed  Outcome = "FAILED"
)

// PassResult records one executed pass. Immutable once appended to the
// operation's sequence.
type PassResult struct {
	Index        int       `json:"index"`
	Method       Method    `json:"method"`
	Pattern      Pattern   `json:"pattern"`
	BytesWritten uint64    `json:"bytes_written"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Outcome      Outcome   `json:"outcome"`
	Error        string    `json:"error,omitempty"`
}

// PassProgress is published during a pass at cancellation-checkpoint
// granularity, and once per lifecycle phase transition. Transition
// updates carry only Phase; byte counts stay zero.
type PassProgress struct {
	Phase        string
	PassIndex    int
	BytesWritten uint64
	TotalBytes   uint64
}

// ProgressFunc receives progress updates. May be nil.
type ProgressFunc func(PassProgress)

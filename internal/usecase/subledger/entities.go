package subledger

import (
	"installment-subledger/internal/domain/subloan"
)

// SubLoanParams carries the immutable inception terms of one sub-loan.
type SubLoanParams struct {
	Borrowed     uint64 `json:"borrowed"`
	Addon        uint64 `json:"addon"`
	PrimaryRate  uint64 `json:"primary_rate"`
	PenaltyRate  uint64 `json:"penalty_rate"`
	LateFeeRate  uint64 `json:"late_fee_rate"`
	GraceRate    uint64 `json:"grace_rate"`
	DurationDays uint32 `json:"duration_days"`
}

type TakeLoanInput struct {
	BorrowerID string `json:"borrower_id"`
	ProgramID  string `json:"program_id"`
	// Account receives the disbursed funds and is the default settlement
	// counterparty.
	Account string `json:"account"`
	// StartAt is the inception timestamp; zero means "now".
	StartAt  int64           `json:"start_at"`
	SubLoans []SubLoanParams `json:"sub_loans"`
}

type TakeLoanOutput struct {
	LoanRef        string `json:"loan_ref"`
	FirstSubLoanID uint64 `json:"first_sub_loan_id"`
	SubLoanCount   uint16 `json:"sub_loan_count"`
}

// OperationResult reports what a single mutating entry point did.
type OperationResult struct {
	SubLoanID uint64 `json:"sub_loan_id"`
	// OpID is the id of a newly inserted operation, 0 for process/cancel.
	OpID uint16 `json:"op_id,omitempty"`
	// FirstAppliedOpID/AppliedCount mirror the replay engine's report of
	// newly processed pending operations.
	FirstAppliedOpID uint16         `json:"first_applied_op_id,omitempty"`
	AppliedCount     int            `json:"applied_count"`
	Status           subloan.Status `json:"status"`
	UpdateIndex      uint64         `json:"update_index"`
	Outstanding      uint64         `json:"outstanding"`
}

// BatchResult lists the deduplicated sub-loans a batch touched.
type BatchResult struct {
	AffectedSubLoanIDs []uint64 `json:"affected_sub_loan_ids"`
}

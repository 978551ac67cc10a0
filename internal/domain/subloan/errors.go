package subloan

import "errors"

// Every failure condition is a distinct error so callers and tests can assert
// on the specific violated rule. All of them abort the enclosing transaction.
var (
	// Validation.
	ErrZeroValue       = errors.New("value must be nonzero")
	ErrValueNotAllowed = errors.New("value not allowed for this operation kind")
	ErrRateTooHigh     = errors.New("rate exceeds 100%")
	ErrDurationTooLong = errors.New("duration exceeds maximum")
	ErrInvalidKind     = errors.New("invalid operation kind")
	ErrUnroundedValue  = errors.New("value is not a multiple of the accuracy unit")
	ErrFutureTimestamp = errors.New("timestamp must not be in the future")
	ErrBadTimestamp    = errors.New("timestamp must be positive")
	ErrBatchTooLarge   = errors.New("batch exceeds maximum size")
	ErrEmptyBatch      = errors.New("batch is empty")

	// State.
	ErrNotFound            = errors.New("sub-loan not found")
	ErrRevoked             = errors.New("sub-loan already revoked")
	ErrNoSuchOperation     = errors.New("nonexistent operation")
	ErrOperationVoided     = errors.New("operation already voided")
	ErrAlreadyFrozen       = errors.New("sub-loan already frozen")
	ErrNotFrozen           = errors.New("sub-loan is not frozen")
	ErrGraceToggle         = errors.New("grace flag already has the requested value")
	ErrAfterRevocation     = errors.New("operation dated after a revocation")
	ErrRevocationNotLast   = errors.New("revocation must be the final operation")
	ErrBeforeInception     = errors.New("operation dated before the sub-loan start")
	ErrSiblingRangeCorrupt = errors.New("sibling range is inconsistent")

	// Arithmetic.
	ErrOperationOverflow = errors.New("operation counter overflow")
	ErrAmountOverflow    = errors.New("amount accumulator overflow")

	// Domain.
	ErrPaymentExceedsDebt = errors.New("amount exceeds total outstanding balance")
)

package ledger

import (
	"encoding/hex"
	"errors"

	"github.com/holiman/uint256"

	"installment-subledger/internal/domain/subloan"
)

// Change records are a bit-exact external contract: downstream consumers parse
// the packed 256-bit fields, so widths and ordering here must not change.
//
// Amount words pack four unsigned 64-bit sub-fields:
//
//	bits [0,64)    principal
//	bits [64,128)  primary interest
//	bits [128,192) penalty interest
//	bits [192,256) late fee
//
// The terms word packs the remaining state:
//
//	bits [0,8)     status code (1 ongoing, 2 repaid, 3 revoked)
//	bits [8,9)     grace requested
//	bits [9,10)    grace active
//	bits [16,48)   duration days
//	bits [64,96)   primary rate
//	bits [96,128)  penalty rate
//	bits [128,160) late fee rate
//	bits [160,192) grace rate
//	bits [192,256) last-accrued timestamp
//
// Words render as 64-char big-endian hex.

var ErrBadPackedWord = errors.New("packed word must be 64 hex chars")

func statusCode(s subloan.Status) uint64 {
	switch s {
	case subloan.StatusOngoing:
		return 1
	case subloan.StatusRepaid:
		return 2
	case subloan.StatusRevoked:
		return 3
	}
	return 0
}

func statusFromCode(c uint64) subloan.Status {
	switch c {
	case 1:
		return subloan.StatusOngoing
	case 2:
		return subloan.StatusRepaid
	case 3:
		return subloan.StatusRevoked
	}
	return subloan.StatusNonexistent
}

// PackAmounts packs the four component amounts into one 256-bit word.
func PackAmounts(principal, primary, penalty, lateFee uint64) string {
	z := uint256.Int{principal, primary, penalty, lateFee}
	buf := z.Bytes32()
	return hex.EncodeToString(buf[:])
}

// ParseAmounts is the inverse of PackAmounts.
func ParseAmounts(word string) (principal, primary, penalty, lateFee uint64, err error) {
	z, err := parseWord(word)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return z[0], z[1], z[2], z[3], nil
}

// TermsFields is the decoded form of a packed terms word.
type TermsFields struct {
	Status         subloan.Status
	GraceRequested bool
	GraceActive    bool
	DurationDays   uint32
	PrimaryRate    uint64
	PenaltyRate    uint64
	LateFeeRate    uint64
	GraceRate      uint64
	AccruedAt      int64
}

// PackTerms packs status, flags, duration, rates and the accrual timestamp.
func PackTerms(s *subloan.SubLoan) string {
	var w0 uint64 = statusCode(s.Status)
	if s.GraceRequested {
		w0 |= 1 << 8
	}
	if s.GraceActive {
		w0 |= 1 << 9
	}
	w0 |= uint64(s.DurationDays) << 16

	z := uint256.Int{
		w0,
		s.PrimaryRate | s.PenaltyRate<<32,
		s.LateFeeRate | s.GraceRate<<32,
		uint64(s.AccruedAt),
	}
	buf := z.Bytes32()
	return hex.EncodeToString(buf[:])
}

// ParseTerms is the inverse of PackTerms.
func ParseTerms(word string) (TermsFields, error) {
	z, err := parseWord(word)
	if err != nil {
		return TermsFields{}, err
	}
	return TermsFields{
		Status:         statusFromCode(z[0] & 0xff),
		GraceRequested: z[0]&(1<<8) != 0,
		GraceActive:    z[0]&(1<<9) != 0,
		DurationDays:   uint32(z[0] >> 16),
		PrimaryRate:    z[1] & 0xffffffff,
		PenaltyRate:    z[1] >> 32,
		LateFeeRate:    z[2] & 0xffffffff,
		GraceRate:      z[2] >> 32,
		AccruedAt:      int64(z[3]),
	}, nil
}

func parseWord(word string) (*uint256.Int, error) {
	if len(word) != 64 {
		return nil, ErrBadPackedWord
	}
	raw, err := hex.DecodeString(word)
	if err != nil {
		return nil, ErrBadPackedWord
	}
	return new(uint256.Int).SetBytes(raw), nil
}

// BuildChangeRecord snapshots the sub-loan into the packed notification format
// keyed by its current update index.
func BuildChangeRecord(s *subloan.SubLoan) *subloan.ChangeRecord {
	return &subloan.ChangeRecord{
		SubLoanID:   s.ID,
		UpdateIndex: s.UpdateIndex,
		Tracked:     PackAmounts(s.Principal.Tracked, s.Primary.Tracked, s.Penalty.Tracked, s.LateFee.Tracked),
		Repaid:      PackAmounts(s.Principal.Repaid, s.Primary.Repaid, s.Penalty.Repaid, s.LateFee.Repaid),
		Discounted:  PackAmounts(s.Principal.Discounted, s.Primary.Discounted, s.Penalty.Discounted, s.LateFee.Discounted),
		Terms:       PackTerms(s),
	}
}

package ledger

import (
	"math/big"

	"installment-subledger/internal/domain/subloan"
)

// accrueTo advances interest and fees from the sub-loan's last-accrued time up
// to end. Accrual is day-granular: only whole day-boundary crossings change
// balances. Frozen sub-loans never accrue past their freeze timestamp.
//
// Three rules run per advanced segment:
//   - primary interest compounds on principal+primary outstanding, with the
//     rate discounted while the grace window is active;
//   - penalty interest accrues simple on principal only, for days strictly
//     after the due day;
//   - the late fee is charged exactly once, when the segment crosses the due
//     day.
func (e *Engine) accrueTo(s *subloan.SubLoan, end int64) error {
	if s.FrozenAt != 0 && end > s.FrozenAt {
		end = s.FrozenAt
	}
	if end <= s.AccruedAt {
		return nil
	}
	d0 := e.dayIndex(s.AccruedAt)
	d1 := e.dayIndex(end)
	if d1 == d0 {
		s.AccruedAt = end
		return nil
	}
	due := e.dueDay(s)

	// Primary: compound over the whole segment.
	if err := e.accruePrimary(s, uint32(d1-d0)); err != nil {
		return err
	}

	// Penalty: simple interest for day steps strictly after the due day.
	penFrom := d0
	if due > penFrom {
		penFrom = due
	}
	if penDays := d1 - penFrom; penDays > 0 {
		if err := e.accruePenalty(s, uint64(penDays)); err != nil {
			return err
		}
	}

	// Late fee: one-time charge at the due day crossing.
	if d0 <= due && d1 > due {
		if err := e.chargeLateFee(s); err != nil {
			return err
		}
	}

	s.AccruedAt = end
	return nil
}

func (e *Engine) accruePrimary(s *subloan.SubLoan, days uint32) error {
	rate := s.PrimaryRate
	if s.GraceActive && s.GraceRate > 0 {
		discounted, err := mulRateRound(rate, subloan.RateFactor-s.GraceRate)
		if err != nil {
			return err
		}
		rate = discounted
	}
	if rate == 0 {
		return nil
	}
	base, err := addChecked(s.Principal.Tracked, s.Primary.Tracked)
	if err != nil {
		return err
	}
	grown, err := growBalance(base, rate, days, e.cfg.Accuracy)
	if err != nil {
		return err
	}
	if grown > base {
		s.Primary.Tracked, err = addChecked(s.Primary.Tracked, grown-base)
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) accruePenalty(s *subloan.SubLoan, days uint64) error {
	if s.PenaltyRate == 0 || s.Principal.Tracked == 0 {
		return nil
	}
	// round(principal * rate * days / RateFactor) in one division.
	num := new(big.Int).SetUint64(s.Principal.Tracked)
	num.Mul(num, new(big.Int).SetUint64(s.PenaltyRate))
	num.Mul(num, new(big.Int).SetUint64(days))
	out := bigRoundDiv(num, rateFactor)
	if out.Cmp(bigMaxU64) > 0 {
		return subloan.ErrAmountOverflow
	}
	inc, err := roundTo(out.Uint64(), e.cfg.Accuracy)
	if err != nil {
		return err
	}
	s.Penalty.Tracked, err = addChecked(s.Penalty.Tracked, inc)
	return err
}

func (e *Engine) chargeLateFee(s *subloan.SubLoan) error {
	if s.LateFeeRate == 0 || s.Principal.Tracked == 0 {
		return nil
	}
	fee, err := mulRateRound(s.Principal.Tracked, s.LateFeeRate)
	if err != nil {
		return err
	}
	fee, err = roundTo(fee, e.cfg.Accuracy)
	if err != nil {
		return err
	}
	s.LateFee.Tracked, err = addChecked(s.LateFee.Tracked, fee)
	return err
}

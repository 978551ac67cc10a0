package ledger

import (
	"errors"
	"strings"
	"testing"

	"installment-subledger/internal/domain/subloan"
)

func TestPackAmountsLayout(t *testing.T) {
	// Principal is the least significant 64-bit field.
	if got, want := PackAmounts(1, 0, 0, 0), strings.Repeat("0", 63)+"1"; got != want {
		t.Errorf("principal limb: got %s", got)
	}
	// The late fee occupies the most significant field.
	if got, want := PackAmounts(0, 0, 0, 1), strings.Repeat("0", 15)+"1"+strings.Repeat("0", 48); got != want {
		t.Errorf("late fee limb: got %s", got)
	}

	word := PackAmounts(11, 22, 33, 44)
	if len(word) != 64 {
		t.Fatalf("word length = %d", len(word))
	}
	principal, primary, penalty, lateFee, err := ParseAmounts(word)
	if err != nil {
		t.Fatal(err)
	}
	if principal != 11 || primary != 22 || penalty != 33 || lateFee != 44 {
		t.Errorf("roundtrip = %d/%d/%d/%d", principal, primary, penalty, lateFee)
	}
}

func TestParseWordRejectsMalformedInput(t *testing.T) {
	for _, word := range []string{
		"",
		strings.Repeat("0", 63),
		strings.Repeat("0", 65),
		"zz" + strings.Repeat("0", 62),
	} {
		if _, _, _, _, err := ParseAmounts(word); !errors.Is(err, ErrBadPackedWord) {
			t.Errorf("ParseAmounts(%q): %v", word, err)
		}
		if _, err := ParseTerms(word); !errors.Is(err, ErrBadPackedWord) {
			t.Errorf("ParseTerms(%q): %v", word, err)
		}
	}
}

func TestPackTermsRoundtrip(t *testing.T) {
	s := testLoan(1, 1000, testRates{primary: pct1, penalty: pct5, lateFee: pct2, grace: 500_000_000}, 30)
	s.Status = subloan.StatusOngoing
	s.GraceRequested = true
	s.AccruedAt = day(7)

	fields, err := ParseTerms(PackTerms(s))
	if err != nil {
		t.Fatal(err)
	}
	if fields.Status != subloan.StatusOngoing {
		t.Errorf("status = %s", fields.Status)
	}
	if !fields.GraceRequested || fields.GraceActive {
		t.Errorf("grace flags = %v/%v", fields.GraceRequested, fields.GraceActive)
	}
	if fields.DurationDays != 30 {
		t.Errorf("duration = %d", fields.DurationDays)
	}
	if fields.PrimaryRate != pct1 || fields.PenaltyRate != pct5 {
		t.Errorf("rates = %d/%d", fields.PrimaryRate, fields.PenaltyRate)
	}
	if fields.LateFeeRate != pct2 || fields.GraceRate != 500_000_000 {
		t.Errorf("rates = %d/%d", fields.LateFeeRate, fields.GraceRate)
	}
	if fields.AccruedAt != day(7) {
		t.Errorf("accrued at = %d", fields.AccruedAt)
	}
}

func TestPackTermsStatusCodes(t *testing.T) {
	s := testLoan(1, 1000, testRates{}, 30)
	for _, st := range []subloan.Status{subloan.StatusOngoing, subloan.StatusRepaid, subloan.StatusRevoked} {
		s.Status = st
		fields, err := ParseTerms(PackTerms(s))
		if err != nil {
			t.Fatal(err)
		}
		if fields.Status != st {
			t.Errorf("roundtrip of %s gave %s", st, fields.Status)
		}
	}

	// An all-zero word decodes to the pre-creation state.
	fields, err := ParseTerms(strings.Repeat("0", 64))
	if err != nil {
		t.Fatal(err)
	}
	if fields.Status != subloan.StatusNonexistent {
		t.Errorf("zero word status = %s", fields.Status)
	}
}

func TestBuildChangeRecord(t *testing.T) {
	s := testLoan(9, 1000, testRates{primary: pct1}, 30)
	s.UpdateIndex = 4
	s.Principal = subloan.Component{Tracked: 700, Repaid: 250, Discounted: 50}
	s.Primary = subloan.Component{Tracked: 12}

	rec := BuildChangeRecord(s)
	if rec.SubLoanID != 9 || rec.UpdateIndex != 4 {
		t.Fatalf("keys = %d/%d", rec.SubLoanID, rec.UpdateIndex)
	}

	principal, primary, _, _, err := ParseAmounts(rec.Tracked)
	if err != nil {
		t.Fatal(err)
	}
	if principal != 700 || primary != 12 {
		t.Errorf("tracked word = %d/%d", principal, primary)
	}
	principal, _, _, _, err = ParseAmounts(rec.Repaid)
	if err != nil {
		t.Fatal(err)
	}
	if principal != 250 {
		t.Errorf("repaid word principal = %d", principal)
	}
	principal, _, _, _, err = ParseAmounts(rec.Discounted)
	if err != nil {
		t.Fatal(err)
	}
	if principal != 50 {
		t.Errorf("discounted word principal = %d", principal)
	}
	if _, err := ParseTerms(rec.Terms); err != nil {
		t.Errorf("terms word: %v", err)
	}
}

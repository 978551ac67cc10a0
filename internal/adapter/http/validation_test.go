package http

import (
	"errors"
	"strings"
	"testing"

	"installment-subledger/internal/domain/subloan"
)

func TestHex32Validation(t *testing.T) {
	type P struct {
		BorrowerID string `validate:"hex32"`
	}
	cv := NewValidator()

	// valid: 32-char lowercase hex
	ok := P{BorrowerID: strings.Repeat("a", 32)}
	if err := cv.Validate(ok); err != nil {
		t.Fatalf("expected valid hex32, got err: %v", err)
	}

	// invalid samples
	for _, s := range []string{
		"",                                  // empty
		strings.Repeat("A", 32),             // uppercase
		"deadbeef",                          // too short
		strings.Repeat("g", 32),             // non-hex char
		"3f9a6a1b3d544fbe8b3a6b3e8d6b2c8",   // 31 chars
		"3f9a6a1b3d544fbe8b3a6b3e8d6b2c88x", // 33 with extra
	} {
		bad := P{BorrowerID: s}
		err := cv.Validate(bad)
		if err == nil {
			t.Fatalf("expected error for %q", s)
		}
		fe := ToFieldErrors(err)
		if !containsFieldMsg(fe, "BorrowerID", "32-char lowercase hex") {
			t.Fatalf("expected hex32 message for %q, got: %+v", s, fe)
		}
	}
}

func TestOpKindValidation(t *testing.T) {
	type P struct {
		Kind string `validate:"opkind"`
	}
	cv := NewValidator()

	for _, k := range []string{
		"repayment", "discount", "revocation", "freeze", "unfreeze",
		"set_primary_rate", "set_penalty_rate", "set_late_fee_rate",
		"set_grace_rate", "set_duration", "set_grace_flag",
	} {
		if err := cv.Validate(P{Kind: k}); err != nil {
			t.Fatalf("expected opkind OK for %q, got %v", k, err)
		}
	}
	for _, k := range []string{"", "payment", "REPAYMENT", "set-duration"} {
		err := cv.Validate(P{Kind: k})
		if err == nil {
			t.Fatalf("expected opkind error for %q", k)
		}
		fe := ToFieldErrors(err)
		if !containsFieldMsg(fe, "Kind", "not a known operation kind") {
			t.Fatalf("expected opkind message for %q, got %+v", k, fe)
		}
	}
}

func TestRateValidation(t *testing.T) {
	type P struct {
		Rate uint64 `validate:"rate"`
	}
	cv := NewValidator()

	for _, v := range []uint64{0, 1, 10_000_000, subloan.RateFactor} {
		if err := cv.Validate(P{Rate: v}); err != nil {
			t.Fatalf("expected rate OK for %d, got %v", v, err)
		}
	}
	err := cv.Validate(P{Rate: subloan.RateFactor + 1})
	if err == nil {
		t.Fatalf("expected rate error above 100%%")
	}
	fe := ToFieldErrors(err)
	if !containsFieldMsg(fe, "Rate", "must not exceed") {
		t.Fatalf("expected rate message, got %+v", fe)
	}
}

func TestRequiredAndBoundsMapping(t *testing.T) {
	type P struct {
		Name string `validate:"required"`
		Min  int    `validate:"gte=10"`
		Max  int    `validate:"lte=5"`
		At   int64  `validate:"gt=0"`
	}
	cv := NewValidator()

	// Intentionally violate all
	err := cv.Validate(P{
		Name: "", // required
		Min:  9,  // gte=10
		Max:  6,  // lte=5
		At:   0,  // gt=0
	})
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	fe := ToFieldErrors(err)

	if !containsFieldMsg(fe, "Name", "is required") {
		t.Fatalf("missing 'is required' for Name: %+v", fe)
	}
	if !containsFieldMsg(fe, "Min", "greater than or equal to 10") {
		t.Fatalf("missing gte message for Min: %+v", fe)
	}
	if !containsFieldMsg(fe, "Max", "less than or equal to 5") {
		t.Fatalf("missing lte message for Max: %+v", fe)
	}
	if !containsFieldMsg(fe, "At", "greater than 0") {
		t.Fatalf("missing gt message for At: %+v", fe)
	}
}

func TestToFieldErrors_NonValidation(t *testing.T) {
	err := errors.New("boom")
	fe := ToFieldErrors(err)
	if len(fe) != 1 {
		t.Fatalf("expected 1 field error, got %d", len(fe))
	}
	if fe[0].Field != "_" || fe[0].Message != "boom" {
		t.Fatalf("unexpected mapping: %+v", fe[0])
	}
}

package mysql

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"installment-subledger/internal/domain/subloan"
	"installment-subledger/pkg/id"
)

// openTestDB creates an in-memory sqlite DB with the full schema. The domain
// models use portable column types, so no sqlite-specific mirror is needed.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&subloan.SubLoan{}, &subloan.Operation{}, &subloan.ChangeRecord{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func makeSubLoan(subID uint64, loanRef string, index, count uint16) *subloan.SubLoan {
	s := &subloan.SubLoan{
		ID:               subID,
		LoanRef:          loanRef,
		BorrowerID:       "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		Borrowed:         1000,
		InitPrimaryRate:  10_000_000,
		InitDurationDays: 30,
		StartAt:          1_700_000_000,
		IndexInLoan:      index,
		SiblingCount:     count,
		Status:           subloan.StatusOngoing,
		DurationDays:     30,
		AccruedAt:        1_700_000_000,
		PrimaryRate:      10_000_000,
	}
	s.Principal.Tracked = 1000
	return s
}

func TestSubLoanCreateAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewSubLoanRepository(db)
	ctx := context.Background()

	ref := id.NewID32()
	if err := repo.Create(ctx, makeSubLoan(1, ref, 0, 1)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.LoanRef != ref || got.Principal.Tracked != 1000 {
		t.Errorf("unexpected sub-loan: %+v", got)
	}
}

func TestSubLoanGet_NotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewSubLoanRepository(db)

	if _, err := repo.Get(context.Background(), 99); !errors.Is(err, subloan.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetForUpdate(context.Background(), 99); !errors.Is(err, subloan.ErrNotFound) {
		t.Fatalf("GetForUpdate: expected ErrNotFound, got %v", err)
	}
}

func TestSubLoanSaveUpdates(t *testing.T) {
	db := openTestDB(t)
	repo := NewSubLoanRepository(db)
	ctx := context.Background()

	s := makeSubLoan(1, id.NewID32(), 0, 1)
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	s.Status = subloan.StatusRepaid
	s.Principal.Tracked = 0
	s.Principal.Repaid = 1000
	s.UpdateIndex = 2
	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != subloan.StatusRepaid || got.Principal.Repaid != 1000 || got.UpdateIndex != 2 {
		t.Errorf("update not persisted: %+v", got)
	}
}

func TestSubLoanSiblings(t *testing.T) {
	db := openTestDB(t)
	repo := NewSubLoanRepository(db)
	ctx := context.Background()

	ref := id.NewID32()
	for i := uint64(0); i < 3; i++ {
		if err := repo.Create(ctx, makeSubLoan(4+i, ref, uint16(i), 3)); err != nil {
			t.Fatalf("Create %d: %v", 4+i, err)
		}
	}
	// A neighbouring loan right after the range must not leak in.
	if err := repo.Create(ctx, makeSubLoan(7, id.NewID32(), 0, 1)); err != nil {
		t.Fatalf("Create neighbour: %v", err)
	}

	subs, err := repo.Siblings(ctx, 4, 3)
	if err != nil {
		t.Fatalf("Siblings: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("want 3 siblings, got %d", len(subs))
	}
	for i, s := range subs {
		if s.ID != 4+uint64(i) || s.LoanRef != ref {
			t.Errorf("sibling %d out of order: %+v", i, s)
		}
	}

	if _, err := repo.Siblings(ctx, 100, 2); !errors.Is(err, subloan.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty range, got %v", err)
	}
}

func TestSubLoanMaxID(t *testing.T) {
	db := openTestDB(t)
	repo := NewSubLoanRepository(db)
	ctx := context.Background()

	max, err := repo.MaxID(ctx)
	if err != nil {
		t.Fatalf("MaxID empty: %v", err)
	}
	if max != 0 {
		t.Fatalf("want 0 on empty table, got %d", max)
	}

	for _, sid := range []uint64{1, 5, 3} {
		if err := repo.Create(ctx, makeSubLoan(sid, id.NewID32(), 0, 1)); err != nil {
			t.Fatalf("Create %d: %v", sid, err)
		}
	}
	max, err = repo.MaxID(ctx)
	if err != nil {
		t.Fatalf("MaxID: %v", err)
	}
	if max != 5 {
		t.Fatalf("want 5, got %d", max)
	}
}

func TestSubLoanOngoingIDs(t *testing.T) {
	db := openTestDB(t)
	repo := NewSubLoanRepository(db)
	ctx := context.Background()

	a := makeSubLoan(1, id.NewID32(), 0, 1)
	b := makeSubLoan(2, id.NewID32(), 0, 1)
	b.Status = subloan.StatusRepaid
	c := makeSubLoan(3, id.NewID32(), 0, 1)
	for _, s := range []*subloan.SubLoan{a, b, c} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	ids, err := repo.OngoingIDs(ctx)
	if err != nil {
		t.Fatalf("OngoingIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestOperationCreateAndBySubLoan(t *testing.T) {
	db := openTestDB(t)
	repo := NewOperationRepository(db)
	ctx := context.Background()

	ops := []*subloan.Operation{
		{SubLoanID: 1, OpID: 1, Kind: subloan.KindRepayment, Status: subloan.OpPending, EffectiveAt: 100, Value: 50},
		{SubLoanID: 1, OpID: 2, Kind: subloan.KindDiscount, Status: subloan.OpApplied, EffectiveAt: 200, Value: 10},
		{SubLoanID: 2, OpID: 1, Kind: subloan.KindFreeze, Status: subloan.OpPending, EffectiveAt: 300},
	}
	for _, o := range ops {
		if err := repo.Create(ctx, o); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if o.ID == 0 {
			t.Fatalf("Create did not set auto-increment ID")
		}
	}

	got, err := repo.BySubLoan(ctx, 1)
	if err != nil {
		t.Fatalf("BySubLoan: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 ops for sub-loan 1, got %d", len(got))
	}
	if got[1].Kind != subloan.KindRepayment || got[2].Value != 10 {
		t.Errorf("unexpected ops: %+v", got)
	}

	// Save flips status in place.
	got[1].Status = subloan.OpApplied
	if err := repo.Save(ctx, got[1]); err != nil {
		t.Fatalf("Save: %v", err)
	}
	again, err := repo.BySubLoan(ctx, 1)
	if err != nil {
		t.Fatalf("BySubLoan after save: %v", err)
	}
	if again[1].Status != subloan.OpApplied {
		t.Errorf("status not persisted: %+v", again[1])
	}
}

func TestChangeRecordCreateAndBySubLoan(t *testing.T) {
	db := openTestDB(t)
	repo := NewChangeRecordRepository(db)
	ctx := context.Background()

	word := "00000000000000000000000000000000000000000000000000000000000003e8"
	for i := uint64(1); i <= 3; i++ {
		rec := &subloan.ChangeRecord{
			SubLoanID:   1,
			UpdateIndex: 4 - i, // insert out of order
			Tracked:     word,
			Repaid:      word,
			Discounted:  word,
			Terms:       word,
		}
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := repo.BySubLoan(ctx, 1)
	if err != nil {
		t.Fatalf("BySubLoan: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 records, got %d", len(got))
	}
	for i, rec := range got {
		if rec.UpdateIndex != uint64(i)+1 {
			t.Errorf("records not ordered by update index: %+v", got)
			break
		}
	}
}

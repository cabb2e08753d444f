package claims

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		ID:          uuid.New(),
		ClaimNumber: "CLM-2025-0001",
		ServiceDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		ServiceLines: []ServiceLine{
			{ProcedureCode: "99213", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("75.25")},
			{ProcedureCode: "99000", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("12.40")},
		},
		Patient:  map[string]any{"age": 45, "province": "AB"},
		Provider: map[string]any{"specialty": "family_medicine"},
		Attributes: map[string]any{
			"referralAttached": true,
			"facility":         map[string]any{"code": "F-17"},
		},
	}
}

func TestSubmittedTotal(t *testing.T) {
	snap := testSnapshot()

	// 75.25 + 2*12.40 = 100.05
	want := decimal.RequireFromString("100.05")
	if got := snap.SubmittedTotal(); !got.Equal(want) {
		t.Errorf("SubmittedTotal() = %s, want %s", got, want)
	}
}

func TestAmountFractionalQuantity(t *testing.T) {
	// Time-based codes bill fractional units.
	line := ServiceLine{
		ProcedureCode: "01967",
		Quantity:      decimal.RequireFromString("2.5"),
		UnitPrice:     decimal.RequireFromString("31.68"),
	}

	want := decimal.RequireFromString("79.20")
	if got := line.Amount(); !got.Equal(want) {
		t.Errorf("Amount() = %s, want %s", got, want)
	}
}

func TestResolve(t *testing.T) {
	snap := testSnapshot()

	testCases := []struct {
		path   string
		want   any
		wantOk bool
	}{
		{"claimNumber", "CLM-2025-0001", true},
		{"procedureCode", "99213", true},
		{"quantity", decimal.NewFromInt(1), true},
		{"lineCount", 2, true},
		{"serviceLines.1.procedureCode", "99000", true},
		{"serviceLines.1.quantity", decimal.NewFromInt(2), true},
		{"patient.age", 45, true},
		{"patient.province", "AB", true},
		{"provider.specialty", "family_medicine", true},
		{"referralAttached", true, true},
		{"facility.code", "F-17", true},
		{"patient.weight", nil, false},
		{"serviceLines.5.procedureCode", nil, false},
		{"serviceLines.x.procedureCode", nil, false},
		{"nonexistent", nil, false},
		{"serviceEndDate", nil, false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			got, ok := snap.Resolve(tc.path)
			if ok != tc.wantOk {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tc.path, ok, tc.wantOk)
			}
			if !tc.wantOk {
				return
			}
			if wantDec, isDec := tc.want.(decimal.Decimal); isDec {
				gotDec, ok := got.(decimal.Decimal)
				if !ok || !gotDec.Equal(wantDec) {
					t.Errorf("Resolve(%q) = %v, want %s", tc.path, got, wantDec)
				}
				return
			}
			if got != tc.want {
				t.Errorf("Resolve(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestResolveTotalAmount(t *testing.T) {
	snap := testSnapshot()

	v, ok := snap.Resolve("totalAmount")
	if !ok {
		t.Fatal("totalAmount should resolve")
	}
	if d, isDecimal := v.(decimal.Decimal); !isDecimal || !d.Equal(decimal.RequireFromString("100.05")) {
		t.Errorf("totalAmount = %v, want 100.05", v)
	}
}

func TestInMemoryRepository(t *testing.T) {
	repo := NewInMemoryRepository()
	snap := testSnapshot()
	repo.Put(snap)

	got, err := repo.Snapshot(context.Background(), snap.ID)
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	if got.ClaimNumber != snap.ClaimNumber {
		t.Errorf("claim number = %s, want %s", got.ClaimNumber, snap.ClaimNumber)
	}

	if _, err := repo.Snapshot(context.Background(), uuid.New()); err == nil {
		t.Error("Snapshot() for unknown claim should fail")
	}
}

package borrows

import "testing"

func TestParseStatus(t *testing.T) {
	cases := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"BORROWED", StatusBorrowed, false},
		{"returned", StatusReturned, false},
		{" overdue ", StatusOverdue, false},
		{"Borrowed", StatusBorrowed, false},
		{"LOST", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := ParseStatus(tc.in)
		if tc.wantErr {
			if !HasCode(err, CodeInvalidStatus) {
				t.Errorf("ParseStatus(%q) err = %v, want INVALID_STATUS", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseStatus(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
}

func TestCheckBorrow(t *testing.T) {
	ok := itemStock{ID: 1, Quantity: 5, Available: 3, IsBorrowable: true}

	if err := checkBorrow(ok, 3); err != nil {
		t.Errorf("exact available should pass: %v", err)
	}
	if err := checkBorrow(ok, 4); !HasCode(err, CodeInsufficientStock) {
		t.Errorf("want INSUFFICIENT_STOCK, got %v", err)
	}
	if err := checkBorrow(ok, 0); !HasCode(err, CodeInvalidQuantity) {
		t.Errorf("want INVALID_QUANTITY, got %v", err)
	}

	frozen := ok
	frozen.IsBorrowable = false
	if err := checkBorrow(frozen, 1); !HasCode(err, CodeNotBorrowable) {
		t.Errorf("want NOT_BORROWABLE, got %v", err)
	}
}

func TestPlanTransition(t *testing.T) {
	cases := []struct {
		name     string
		cur      Status
		dateSet  bool
		to       Status
		wantEff  effect
		wantCode Code
	}{
		{"borrowed→returned", StatusBorrowed, false, StatusReturned, effect{releaseQty: 2, setReturnDate: true}, ""},
		{"overdue→returned", StatusOverdue, false, StatusReturned, effect{releaseQty: 2, setReturnDate: true}, ""},
		{"double return", StatusReturned, true, StatusReturned, effect{}, CodeAlreadyReturned},
		{"borrowed→overdue", StatusBorrowed, false, StatusOverdue, effect{}, ""},
		{"overdue with stale date", StatusBorrowed, true, StatusOverdue, effect{clearReturnDate: true}, ""},
		{"returned→overdue", StatusReturned, true, StatusOverdue, effect{}, CodeConflict},
		{"overdue→borrowed (manual)", StatusOverdue, false, StatusBorrowed, effect{}, ""},
		{"returned→borrowed", StatusReturned, true, StatusBorrowed, effect{}, CodeConflict},
		{"borrowed→borrowed noop", StatusBorrowed, false, StatusBorrowed, effect{}, ""},
		{"unknown target", StatusBorrowed, false, Status("LOST"), effect{}, CodeInvalidStatus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eff, err := planTransition(tc.cur, tc.dateSet, tc.to, 2)
			if tc.wantCode != "" {
				if !HasCode(err, tc.wantCode) {
					t.Fatalf("err = %v, want %s", err, tc.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if eff != tc.wantEff {
				t.Fatalf("effect = %+v, want %+v", eff, tc.wantEff)
			}
		})
	}
}

func TestCheckRelease(t *testing.T) {
	it := itemStock{ID: 1, Quantity: 5, Available: 3}

	if err := checkRelease(it, 2); err != nil {
		t.Errorf("release up to total should pass: %v", err)
	}
	if err := checkRelease(it, 3); !HasCode(err, CodeInternal) {
		t.Errorf("over-release must be refused, got %v", err)
	}
}

package borrows

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

type seqIDGen struct{ n int }

func (g *seqIDGen) NewULID(time.Time) string {
	g.n++
	return "01TESTULID" + string(rune('A'+g.n-1))
}

func newTestService(items ...itemStock) (*Service, *memLedger, *fixedClock) {
	ledger := newMemLedger(items...)
	clock := &fixedClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc := &Service{store: ledger, clock: clock, id: &seqIDGen{}}
	return svc, ledger, clock
}

func strPtr(s string) *string { return &s }

func borrowableItem(id int64, qty int) itemStock {
	return itemStock{ID: id, Quantity: qty, Available: qty, IsBorrowable: true}
}

func TestCreateBorrowReservesStock(t *testing.T) {
	svc, ledger, _ := newTestService(borrowableItem(1, 5))

	res, err := svc.CreateBorrow(context.Background(), 9, CreateBorrowRequest{
		ItemID: 1, UserID: 2, QuantityBorrowed: 2,
		ExpectedReturnDate: strPtr("2025-03-08"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Status != StatusBorrowed {
		t.Fatalf("status = %s, want BORROWED", res.Status)
	}
	if res.AdminID != 9 {
		t.Fatalf("admin_id = %d, want caller 9", res.AdminID)
	}
	if got := ledger.available(1); got != 3 {
		t.Fatalf("available = %d, want 3", got)
	}
	if !ledger.conservationHolds(1) {
		t.Fatalf("conservation violated after create")
	}
}

func TestCreateBorrowValidation(t *testing.T) {
	svc, _, _ := newTestService(
		borrowableItem(1, 1),
		itemStock{ID: 2, Quantity: 4, Available: 4, IsBorrowable: false},
	)
	ctx := context.Background()

	cases := []struct {
		name string
		req  CreateBorrowRequest
		code Code
	}{
		{"insufficient stock", CreateBorrowRequest{ItemID: 1, UserID: 2, QuantityBorrowed: 2}, CodeInsufficientStock},
		{"not borrowable", CreateBorrowRequest{ItemID: 2, UserID: 2, QuantityBorrowed: 1}, CodeNotBorrowable},
		{"item not found", CreateBorrowRequest{ItemID: 99, UserID: 2, QuantityBorrowed: 1}, CodeNotFound},
		{"zero quantity", CreateBorrowRequest{ItemID: 1, UserID: 2, QuantityBorrowed: 0}, CodeInvalidQuantity},
		{"negative quantity", CreateBorrowRequest{ItemID: 1, UserID: 2, QuantityBorrowed: -3}, CodeInvalidQuantity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateBorrow(ctx, 9, tc.req)
			if !HasCode(err, tc.code) {
				t.Fatalf("err = %v, want code %s", err, tc.code)
			}
		})
	}
}

func TestReturnIsIdempotentOnce(t *testing.T) {
	svc, ledger, _ := newTestService(borrowableItem(1, 5))
	ctx := context.Background()

	res, err := svc.CreateBorrow(ctx, 9, CreateBorrowRequest{ItemID: 1, UserID: 2, QuantityBorrowed: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ret, err := svc.ReturnBorrow(ctx, res.ID, ReturnRequest{})
	if err != nil {
		t.Fatalf("first return: %v", err)
	}
	if ret.Status != StatusReturned {
		t.Fatalf("status = %s, want RETURNED", ret.Status)
	}
	if ret.ActualReturnDate == nil {
		t.Fatalf("actual_return_date not set")
	}
	if got := ledger.available(1); got != 5 {
		t.Fatalf("available = %d, want 5", got)
	}

	// 2回目は ALREADY_RETURNED、在庫はそれ以上増えない
	_, err = svc.ReturnBorrow(ctx, res.ID, ReturnRequest{})
	if !HasCode(err, CodeAlreadyReturned) {
		t.Fatalf("second return err = %v, want ALREADY_RETURNED", err)
	}
	if got := ledger.available(1); got != 5 {
		t.Fatalf("available after double return = %d, want 5", got)
	}
	if !ledger.conservationHolds(1) {
		t.Fatalf("conservation violated")
	}
}

// 最後の1個を同時に借りようとしたら、成功はちょうど1回。
func TestConcurrentBorrowLastUnit(t *testing.T) {
	svc, ledger, _ := newTestService(borrowableItem(1, 1))

	const workers = 2
	errs := make([]error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateBorrow(context.Background(), 9, CreateBorrowRequest{
				ItemID: 1, UserID: int64(100 + i), QuantityBorrowed: 1,
			})
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case HasCode(err, CodeInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || insufficient != 1 {
		t.Fatalf("got %d successes and %d insufficient, want 1 and 1", ok, insufficient)
	}
	if got := ledger.available(1); got != 0 {
		t.Fatalf("available = %d, want 0", got)
	}
	if !ledger.conservationHolds(1) {
		t.Fatalf("conservation violated")
	}
}

func TestDeleteOutstandingRestoresStock(t *testing.T) {
	svc, ledger, _ := newTestService(borrowableItem(1, 5))
	ctx := context.Background()

	res, err := svc.CreateBorrow(ctx, 9, CreateBorrowRequest{ItemID: 1, UserID: 2, QuantityBorrowed: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := ledger.available(1); got != 2 {
		t.Fatalf("available = %d, want 2", got)
	}

	if err := svc.DeleteBorrow(ctx, res.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := ledger.available(1); got != 5 {
		t.Fatalf("available after delete = %d, want 5", got)
	}
}

func TestDeleteReturnedHasNoQuantityEffect(t *testing.T) {
	svc, ledger, _ := newTestService(borrowableItem(1, 5))
	ctx := context.Background()

	res, _ := svc.CreateBorrow(ctx, 9, CreateBorrowRequest{ItemID: 1, UserID: 2, QuantityBorrowed: 2})
	if _, err := svc.ReturnBorrow(ctx, res.ID, ReturnRequest{}); err != nil {
		t.Fatalf("return: %v", err)
	}
	if err := svc.DeleteBorrow(ctx, res.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := ledger.available(1); got != 5 {
		t.Fatalf("available = %d, want 5", got)
	}
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newTestService(borrowableItem(1, 5))
	ctx := context.Background()

	res, _ := svc.CreateBorrow(ctx, 9, CreateBorrowRequest{ItemID: 1, UserID: 2, QuantityBorrowed: 1})
	_, err := svc.UpdateBorrow(ctx, res.ID, UpdateBorrowRequest{Status: strPtr("LOST")})
	if !HasCode(err, CodeInvalidStatus) {
		t.Fatalf("err = %v, want INVALID_STATUS", err)
	}
}

func TestUpdateFieldsWithoutStatusNeverTouchesStock(t *testing.T) {
	svc, ledger, _ := newTestService(borrowableItem(1, 5))
	ctx := context.Background()

	res, _ := svc.CreateBorrow(ctx, 9, CreateBorrowRequest{ItemID: 1, UserID: 2, QuantityBorrowed: 2})
	upd, err := svc.UpdateBorrow(ctx, res.ID, UpdateBorrowRequest{
		Notes:              strPtr("beaker chipped"),
		ExpectedReturnDate: strPtr("2025-04-01"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if upd.Notes == nil || *upd.Notes != "beaker chipped" {
		t.Fatalf("notes not updated: %+v", upd.Notes)
	}
	if upd.Status != StatusBorrowed {
		t.Fatalf("status changed to %s", upd.Status)
	}
	if got := ledger.available(1); got != 3 {
		t.Fatalf("available = %d, want 3", got)
	}
}

func TestManualOverdueAndCorrectionPaths(t *testing.T) {
	svc, ledger, _ := newTestService(borrowableItem(1, 5))
	ctx := context.Background()

	res, _ := svc.CreateBorrow(ctx, 9, CreateBorrowRequest{ItemID: 1, UserID: 2, QuantityBorrowed: 2})

	// 管理者による明示的な BORROWED→OVERDUE。数量は動かない。
	upd, err := svc.UpdateBorrow(ctx, res.ID, UpdateBorrowRequest{Status: strPtr("overdue")})
	if err != nil {
		t.Fatalf("mark overdue: %v", err)
	}
	if upd.Status != StatusOverdue {
		t.Fatalf("status = %s, want OVERDUE", upd.Status)
	}
	if got := ledger.available(1); got != 3 {
		t.Fatalf("available moved on OVERDUE transition: %d", got)
	}

	// OVERDUE→BORROWED は手動訂正経路。やはり数量は動かない。
	upd, err = svc.UpdateBorrow(ctx, res.ID, UpdateBorrowRequest{Status: strPtr("BORROWED")})
	if err != nil {
		t.Fatalf("correct back to borrowed: %v", err)
	}
	if upd.Status != StatusBorrowed {
		t.Fatalf("status = %s, want BORROWED", upd.Status)
	}
	if got := ledger.available(1); got != 3 {
		t.Fatalf("available moved on manual correction: %d", got)
	}

	// OVERDUE からの返却は通常返却と同じ
	if _, err := svc.UpdateBorrow(ctx, res.ID, UpdateBorrowRequest{Status: strPtr("OVERDUE")}); err != nil {
		t.Fatalf("re-mark overdue: %v", err)
	}
	ret, err := svc.ReturnBorrow(ctx, res.ID, ReturnRequest{})
	if err != nil {
		t.Fatalf("return from overdue: %v", err)
	}
	if ret.Status != StatusReturned || ret.ActualReturnDate == nil {
		t.Fatalf("bad returned log: %+v", ret)
	}
	if got := ledger.available(1); got != 5 {
		t.Fatalf("available = %d, want 5", got)
	}
}

func TestReturnedLogCannotGoBackOutstanding(t *testing.T) {
	svc, ledger, _ := newTestService(borrowableItem(1, 5))
	ctx := context.Background()

	res, _ := svc.CreateBorrow(ctx, 9, CreateBorrowRequest{ItemID: 1, UserID: 2, QuantityBorrowed: 2})
	if _, err := svc.ReturnBorrow(ctx, res.ID, ReturnRequest{}); err != nil {
		t.Fatalf("return: %v", err)
	}

	for _, st := range []string{"OVERDUE", "BORROWED"} {
		_, err := svc.UpdateBorrow(ctx, res.ID, UpdateBorrowRequest{Status: strPtr(st)})
		if !HasCode(err, CodeConflict) {
			t.Fatalf("RETURNED→%s err = %v, want CONFLICT", st, err)
		}
	}
	if got := ledger.available(1); got != 5 {
		t.Fatalf("available = %d, want 5", got)
	}
}

// 通常経路では起きないはずの二重解放は clamp せず内部エラーにする
func TestDoubleReleaseIsRefusedNotClamped(t *testing.T) {
	svc, ledger, _ := newTestService(borrowableItem(1, 5))
	ctx := context.Background()

	res, _ := svc.CreateBorrow(ctx, 9, CreateBorrowRequest{ItemID: 1, UserID: 2, QuantityBorrowed: 2})

	// 台帳の状態を壊して（返却済みなのに日付なし扱い）二重解放を誘発
	ledger.mu.Lock()
	ledger.items[1].Available = 5 // 既に解放済みの状態を偽装
	ledger.mu.Unlock()

	_, err := svc.ReturnBorrow(ctx, res.ID, ReturnRequest{})
	if !HasCode(err, CodeInternal) {
		t.Fatalf("err = %v, want INTERNAL (conservation guard)", err)
	}
	if got := ledger.available(1); got != 5 {
		t.Fatalf("available = %d, want unchanged 5", got)
	}
}

// §8のシナリオ: 借りる→掃引(期日前)→掃引(期日後)→返却
func TestFullLifecycleScenario(t *testing.T) {
	svc, ledger, clock := newTestService(borrowableItem(1, 5))
	ctx := context.Background()

	due := clock.t.Add(7 * 24 * time.Hour)
	res, err := svc.CreateBorrow(ctx, 9, CreateBorrowRequest{
		ItemID: 1, UserID: 2, QuantityBorrowed: 2,
		ExpectedReturnDate: strPtr(due.Format(time.RFC3339)),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := ledger.available(1); got != 3 {
		t.Fatalf("available = %d, want 3", got)
	}

	// 期日前の掃引は何もしない
	n, err := svc.RunOverdueSweep(ctx, clock.t)
	if err != nil || n != 0 {
		t.Fatalf("sweep before due: n=%d err=%v", n, err)
	}

	// 期日を過ぎて掃引 → OVERDUE、在庫はそのまま
	clock.t = due.Add(time.Hour)
	n, err = svc.RunOverdueSweep(ctx, clock.t)
	if err != nil || n != 1 {
		t.Fatalf("sweep after due: n=%d err=%v", n, err)
	}
	got, err := svc.GetBorrow(ctx, res.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusOverdue {
		t.Fatalf("status = %s, want OVERDUE", got.Status)
	}
	if a := ledger.available(1); a != 3 {
		t.Fatalf("available = %d, want 3", a)
	}

	// 返却で日付が付き在庫が戻る
	ret, err := svc.ReturnBorrow(ctx, res.ID, ReturnRequest{})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if ret.Status != StatusReturned || ret.ActualReturnDate == nil {
		t.Fatalf("bad returned log: %+v", ret)
	}
	if a := ledger.available(1); a != 5 {
		t.Fatalf("available = %d, want 5", a)
	}
	if !ledger.conservationHolds(1) {
		t.Fatalf("conservation violated")
	}
}

func TestListScopingAndFilters(t *testing.T) {
	svc, _, clock := newTestService(borrowableItem(1, 10))
	ctx := context.Background()

	past := clock.t.Add(-24 * time.Hour).Format(time.RFC3339)
	if _, err := svc.CreateBorrow(ctx, 9, CreateBorrowRequest{ItemID: 1, UserID: 2, QuantityBorrowed: 1, ExpectedReturnDate: &past}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateBorrow(ctx, 9, CreateBorrowRequest{ItemID: 1, UserID: 3, QuantityBorrowed: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}

	uid := int64(2)
	res, err := svc.ListBorrows(ctx, Filter{UserID: &uid}, Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(res) != 1 || res[0].UserID != 2 {
		t.Fatalf("user filter: %+v", res)
	}

	res, err = svc.ListBorrows(ctx, Filter{OverdueOnly: true}, Page{})
	if err != nil {
		t.Fatalf("list overdue: %v", err)
	}
	if len(res) != 1 || res[0].UserID != 2 {
		t.Fatalf("overdue filter: %+v", res)
	}
}

func TestOutstandingByUserGuard(t *testing.T) {
	svc, _, _ := newTestService(borrowableItem(1, 10))
	ctx := context.Background()

	res, _ := svc.CreateBorrow(ctx, 9, CreateBorrowRequest{ItemID: 1, UserID: 2, QuantityBorrowed: 1})

	n, err := svc.OutstandingByUser(ctx, 2)
	if err != nil || n != 1 {
		t.Fatalf("outstanding = %d err=%v, want 1", n, err)
	}

	if _, err := svc.ReturnBorrow(ctx, res.ID, ReturnRequest{}); err != nil {
		t.Fatalf("return: %v", err)
	}
	n, err = svc.OutstandingByUser(ctx, 2)
	if err != nil || n != 0 {
		t.Fatalf("outstanding after return = %d err=%v, want 0", n, err)
	}
}

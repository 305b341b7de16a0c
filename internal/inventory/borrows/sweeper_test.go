package borrows

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSweeperMarksOverdueInBackground(t *testing.T) {
	svc, ledger, clock := newTestService(borrowableItem(1, 5))
	ctx := context.Background()

	past := clock.t.Add(-time.Hour).Format(time.RFC3339)
	res, err := svc.CreateBorrow(ctx, 9, CreateBorrowRequest{
		ItemID: 1, UserID: 2, QuantityBorrowed: 2, ExpectedReturnDate: &past,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	w := NewSweeper(svc, 10*time.Millisecond)
	w.Start()
	defer w.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := svc.GetBorrow(ctx, res.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status == StatusOverdue {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("sweeper never marked the log overdue")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// 在庫は動かない
	if got := ledger.available(1); got != 3 {
		t.Fatalf("available = %d, want 3", got)
	}
}

func TestSweeperSurvivesFailedTicks(t *testing.T) {
	svc, ledger, _ := newTestService(borrowableItem(1, 5))

	ledger.mu.Lock()
	ledger.sweepErr = errors.New("db gone")
	ledger.mu.Unlock()

	w := NewSweeper(svc, 5*time.Millisecond)
	w.Start()
	time.Sleep(30 * time.Millisecond) // 数tick分失敗させる
	w.Stop()                          // パニックせず正常に止まること
}

func TestSweepSkipsReturnedAndFutureLogs(t *testing.T) {
	svc, _, clock := newTestService(borrowableItem(1, 10))
	ctx := context.Background()

	past := clock.t.Add(-time.Hour).Format(time.RFC3339)
	future := clock.t.Add(time.Hour).Format(time.RFC3339)

	overdue, _ := svc.CreateBorrow(ctx, 9, CreateBorrowRequest{ItemID: 1, UserID: 2, QuantityBorrowed: 1, ExpectedReturnDate: &past})
	onTime, _ := svc.CreateBorrow(ctx, 9, CreateBorrowRequest{ItemID: 1, UserID: 3, QuantityBorrowed: 1, ExpectedReturnDate: &future})
	returned, _ := svc.CreateBorrow(ctx, 9, CreateBorrowRequest{ItemID: 1, UserID: 4, QuantityBorrowed: 1, ExpectedReturnDate: &past})
	if _, err := svc.ReturnBorrow(ctx, returned.ID, ReturnRequest{}); err != nil {
		t.Fatalf("return: %v", err)
	}

	n, err := svc.RunOverdueSweep(ctx, clock.t)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("transitioned = %d, want 1", n)
	}

	for _, tc := range []struct {
		id   int64
		want Status
	}{
		{overdue.ID, StatusOverdue},
		{onTime.ID, StatusBorrowed},
		{returned.ID, StatusReturned},
	} {
		got, err := svc.GetBorrow(ctx, tc.id)
		if err != nil {
			t.Fatalf("get %d: %v", tc.id, err)
		}
		if got.Status != tc.want {
			t.Fatalf("log %d status = %s, want %s", tc.id, got.Status, tc.want)
		}
	}

	// 期限なしの貸出も対象外
	noDue, _ := svc.CreateBorrow(ctx, 9, CreateBorrowRequest{ItemID: 1, UserID: 5, QuantityBorrowed: 1})
	n, err = svc.RunOverdueSweep(ctx, clock.t)
	if err != nil || n != 0 {
		t.Fatalf("sweep with no new overdue: n=%d err=%v", n, err)
	}
	got, _ := svc.GetBorrow(ctx, noDue.ID)
	if got.Status != StatusBorrowed {
		t.Fatalf("no-due log status = %s, want BORROWED", got.Status)
	}
}

// 掃引とユーザー返却が重なっても、先にコミットした返却が勝つ
func TestSweepDoesNotResurrectReturnedLog(t *testing.T) {
	svc, _, clock := newTestService(borrowableItem(1, 5))
	ctx := context.Background()

	past := clock.t.Add(-time.Hour).Format(time.RFC3339)
	res, _ := svc.CreateBorrow(ctx, 9, CreateBorrowRequest{ItemID: 1, UserID: 2, QuantityBorrowed: 1, ExpectedReturnDate: &past})

	if _, err := svc.ReturnBorrow(ctx, res.ID, ReturnRequest{}); err != nil {
		t.Fatalf("return: %v", err)
	}

	n, err := svc.RunOverdueSweep(ctx, clock.t)
	if err != nil || n != 0 {
		t.Fatalf("sweep: n=%d err=%v, want 0", n, err)
	}

	got, _ := svc.GetBorrow(ctx, res.ID)
	if got.Status != StatusReturned || got.ActualReturnDate == nil {
		t.Fatalf("returned log was resurrected: %+v", got)
	}
}

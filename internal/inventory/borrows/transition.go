package borrows

// 在庫の増減は貸出1件のライフサイクルでちょうど2回だけ:
// 作成時の予約 (reserve) と最終返却時の解放 (release)。
// OVERDUE への遷移はステータスのみで在庫には触れない。
// このファイルの関数は純粋で、SQLストアとテスト用の
// インメモリ台帳の両方から呼ばれる。

// effect は状態遷移が要求する台帳・在庫の変更内容。
type effect struct {
	releaseQty      int  // 物品の available_quantity に戻す数量
	setReturnDate   bool // actual_return_date = now を打つ
	clearReturnDate bool // actual_return_date を NULL に戻す
}

// checkBorrow validates a borrow request against the locked item row.
func checkBorrow(it itemStock, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity("quantity_borrowed must be > 0")
	}
	if !it.IsBorrowable {
		return ErrNotBorrowable()
	}
	if it.Available < qty {
		return ErrInsufficientStock(it.Available, qty)
	}
	return nil
}

// planTransition computes the effect of moving a log from its current state
// to `to`. It never mutates anything itself.
func planTransition(cur Status, actualReturnSet bool, to Status, qtyBorrowed int) (effect, error) {
	switch to {
	case StatusReturned:
		if cur == StatusReturned || actualReturnSet {
			return effect{}, ErrAlreadyReturned()
		}
		// BORROWED→RETURNED / OVERDUE→RETURNED: 日付を打って在庫を解放
		return effect{releaseQty: qtyBorrowed, setReturnDate: true}, nil

	case StatusOverdue:
		if cur == StatusReturned {
			// 返却済みを延滞に戻すと保存則が壊れる（在庫は既に解放済み）
			return effect{}, ErrConflict("cannot mark a returned log overdue")
		}
		// 日付が残っていたら消す。数量には触れない。
		return effect{clearReturnDate: actualReturnSet}, nil

	case StatusBorrowed:
		if cur == StatusReturned {
			return effect{}, ErrConflict("cannot reopen a returned log")
		}
		// OVERDUE→BORROWED は手動訂正経路。数量には触れない。
		return effect{clearReturnDate: actualReturnSet}, nil

	default:
		return effect{}, ErrInvalidStatus(string(to))
	}
}

// checkRelease guards the conservation invariant: a release may never push
// available_quantity above quantity. Exceeding it means a double release
// somewhere, so it is surfaced as a defect, not clamped.
func checkRelease(it itemStock, n int) error {
	if it.Available+n > it.Quantity {
		return ErrInternal("release would exceed total quantity (conservation invariant violated)")
	}
	return nil
}

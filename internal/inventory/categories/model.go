package categories

import (
	"database/sql"
	"time"
)

type Category struct {
	ID          int64
	Name        string
	Description sql.NullString
	CreatedAt   time.Time
}

// CategoryWithCount は一覧表示用。所属物品数を集計して返す。
type CategoryWithCount struct {
	Category
	ItemsCount int
}

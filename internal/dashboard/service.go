package dashboard

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stats はダッシュボードの集計結果。そのまま JSON で返す。
type Stats struct {
	TotalItems         int `json:"total_items"`
	TotalCategories    int `json:"total_categories"`
	TotalUsers         int `json:"total_users"`
	LowStockItems      int `json:"low_stock_items"`
	ExpiredItems       int `json:"expired_items"`
	ItemsForDisposal   int `json:"items_for_disposal"`
	TotalBorrowedItems int `json:"total_borrowed_items"`
	OverdueBorrows     int `json:"overdue_borrows"`
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type Service struct {
	store *Store
	cache *redis.Client
	ttl   time.Duration
	clock Clock
}

// NewService の cache は nil 可。nil なら毎回 DB を数える。
func NewService(d *sql.DB, cache *redis.Client, ttl time.Duration) *Service {
	return &Service{store: NewStore(d), cache: cache, ttl: ttl, clock: realClock{}}
}

// GetStats は admin には全体を、viewer には自分の貸出に絞った値を返す。
// 集計はそこそこ重いので redis に短時間キャッシュする。キャッシュ障害は
// ログだけ残して DB 集計にフォールバックする。
func (s *Service) GetStats(ctx context.Context, userID int64, isAdmin bool) (*Stats, error) {
	key := "clis:dashboard:admin"
	var scope *int64
	if !isAdmin {
		key = fmt.Sprintf("clis:dashboard:user:%d", userID)
		scope = &userID
	}

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			var st Stats
			if json.Unmarshal(raw, &st) == nil {
				return &st, nil
			}
		} else if err != redis.Nil {
			log.Printf("[WARN] dashboard cache read failed: %v", err)
		}
	}

	st, err := s.store.CollectStats(ctx, scope, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(st); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
				log.Printf("[WARN] dashboard cache write failed: %v", err)
			}
		}
	}
	return st, nil
}

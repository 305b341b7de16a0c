package borrows

import (
	"context"
	"log"
	"time"
)

// Sweeper は延滞判定の定期バッチ。プロセスの composition root (main) が
// 起動・停止を所有し、台帳へはユーザーリクエストと同じトランザクション
// 経路 (Service.RunOverdueSweep) でしか触れない。
type Sweeper struct {
	svc      *Service
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	return &Sweeper{
		svc:      svc,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop in its own goroutine. 最初の tick は interval 後。
func (w *Sweeper) Start() {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.tick()
			case <-w.stop:
				return
			}
		}
	}()
}

// Stop blocks until the loop has exited. 実行中の tick は完走させる。
func (w *Sweeper) Stop() {
	close(w.stop)
	<-w.done
}

// tick: 失敗はログに残して次回に任せる。ホストを巻き込まない。
func (w *Sweeper) tick() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WARN] overdue sweep panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := w.svc.RunOverdueSweep(ctx, w.svc.Now())
	if err != nil {
		log.Printf("[WARN] overdue sweep failed (will retry next tick): %v", err)
		return
	}
	log.Printf("[INFO] overdue sweep: %d log(s) marked OVERDUE", n)
}

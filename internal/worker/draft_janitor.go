package worker

import (
	"context"
	"time"

	"fieldTasks/internal/logger"

	"go.uber.org/zap"
)

type DraftSweeper interface {
	Sweep(idle time.Duration) int
	Len() int
}

// DraftJanitor убирает черновики, брошенные дольше ttl: пользователь ушёл со страницы
type DraftJanitor struct {
	drafts   DraftSweeper
	interval time.Duration
	ttl      time.Duration
}

func NewDraftJanitor(drafts DraftSweeper, interval, ttl *time.Duration) *DraftJanitor {
	intervalToSet := 5 * time.Minute
	if interval != nil && *interval > 0 {
		intervalToSet = *interval
	}

	ttlToSet := 2 * time.Hour
	if ttl != nil && *ttl > 0 {
		ttlToSet = *ttl
	}

	return &DraftJanitor{
		drafts:   drafts,
		interval: intervalToSet,
		ttl:      ttlToSet,
	}
}

func (w *DraftJanitor) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: Очистка черновиков останавливается")
			return
		}
	}
}

// Check возвращает число удалённых черновиков
func (w *DraftJanitor) Check(ctx context.Context) int {
	start := time.Now()

	removed := w.drafts.Sweep(w.ttl)

	logger.Info(
		"Worker: Завершение очистки черновиков",
		zap.Duration("ms", time.Since(start)),
		zap.Int("removed", removed),
		zap.Int("remaining", w.drafts.Len()),
	)
	return removed
}

package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/practicalwork/library-server/internal/config"
	"github.com/practicalwork/library-server/internal/logger"
	"github.com/practicalwork/library-server/internal/service"
)

// OverdueSweepJob periodically flags issued borrows past their due date.
type OverdueSweepJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (j *OverdueSweepJob) Shutdown() error {
	j.cancel()
	<-j.done
	return nil
}

// ProvideOverdueSweepJob provides the periodic overdue sweep.
func ProvideOverdueSweepJob(i do.Injector) (*OverdueSweepJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	borrows := do.MustInvoke[*service.BorrowService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	sweep := func() {
		count, err := borrows.MarkOverdue(ctx, time.Now())
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("Overdue sweep failed", "error", err)
			}
			return
		}
		if count > 0 {
			log.Info("Overdue sweep completed", "marked", count)
		}
	}

	go func() {
		defer close(done)

		ticker := time.NewTicker(cfg.Library.OverdueSweepInterval)
		defer ticker.Stop()

		// Initial sweep on startup
		sweep()

		for {
			select {
			case <-ticker.C:
				sweep()
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Overdue sweep job started", "interval", cfg.Library.OverdueSweepInterval)

	return &OverdueSweepJob{cancel: cancel, done: done}, nil
}

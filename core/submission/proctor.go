package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/chetansharma-meta/Exam-Portal/core"
)

// Proctor periodically auto-submits attempts whose countdown ran out.
type Proctor struct {
	svc      Service
	logger   core.Logger
	interval time.Duration
}

func NewProctor(svc Service, logger core.Logger, conf *core.Config) *Proctor {
	interval := conf.Exam.SweepInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Proctor{svc: svc, logger: logger, interval: interval}
}

// Run blocks until ctx is cancelled.
func (p *Proctor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep runs one auto-submission pass and returns the number of submitted attempts.
func (p *Proctor) Sweep(ctx context.Context) int {
	n, err := p.svc.AutoSubmitExpired(ctx)
	if err != nil && ctx.Err() == nil {
		p.logger.Error(fmt.Sprintf("auto-submitting expired attempts: %v", err), err)
	}
	if n > 0 {
		p.logger.Info(fmt.Sprintf("auto-submitted %d expired attempt(s)", n))
	}
	return n
}

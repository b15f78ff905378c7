package main

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/custodia-hq/custodia/pkg/issues"
)

// Escalator drives the periodic escalation scan. The engine itself defines no
// timer; this binary owns the cadence via a cron schedule.
type Escalator struct {
	engine   *issues.Engine
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron
}

func NewEscalator(engine *issues.Engine, schedule string, logger *slog.Logger) *Escalator {
	return &Escalator{
		engine:   engine,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start registers the scan job and runs until ctx is cancelled.
func (e *Escalator) Start(ctx context.Context) error {
	if _, err := cron.ParseStandard(e.schedule); err != nil {
		return err
	}

	_, err := e.cron.AddFunc(e.schedule, func() {
		escalated, err := e.engine.CheckEscalationNeeded(ctx)
		if err != nil {
			e.logger.Error("Escalation scan failed", "error", err)

			return
		}

		if len(escalated) > 0 {
			e.logger.Info("Escalation scan complete", "escalated_count", len(escalated))
		}
	})
	if err != nil {
		return err
	}

	e.cron.Start()
	e.logger.Info("Escalator started", "schedule", e.schedule)

	<-ctx.Done()

	stopCtx := e.cron.Stop()
	<-stopCtx.Done()

	return nil
}

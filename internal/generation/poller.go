// Package generation watches report-generation jobs by polling the service's
// status endpoint on a fixed interval with a hard attempt cap and deadline.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/redline/internal/interfaces"
	"github.com/raysh454/redline/internal/logging"
	"github.com/raysh454/redline/internal/model"
)

var (
	// ErrAttemptsExhausted means the job never reached a terminal status
	// within the attempt cap.
	ErrAttemptsExhausted = errors.New("generation polling attempts exhausted")

	// ErrDeadlineExceeded means the overall polling deadline passed first.
	ErrDeadlineExceeded = errors.New("generation polling deadline exceeded")
)

type Config struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"max_attempts"`
	Deadline    time.Duration `yaml:"deadline"`
}

func DefaultConfig() Config {
	return Config{
		Interval:    2 * time.Second,
		MaxAttempts: 150,
		Deadline:    5 * time.Minute,
	}
}

type Poller struct {
	cfg    Config
	svc    interfaces.GenerationService
	logger logging.Logger
}

func NewPoller(cfg Config, svc interfaces.GenerationService, logger logging.Logger) *Poller {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = def.Deadline
	}
	return &Poller{
		cfg:    cfg,
		svc:    svc,
		logger: logger.With(logging.Field{Key: "component", Value: "generation"}),
	}
}

// Wait polls until the job reaches a terminal status (completed or error) or
// the attempt cap or deadline trips. onUpdate, when non-nil, receives every
// observation including the terminal one. A terminal "error" status is a
// normal result, not a Go error: the caller reads Status to decide.
func (p *Poller) Wait(ctx context.Context, reportID int64, onUpdate func(model.GenerationStatus)) (*model.GenerationStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Deadline)
	defer cancel()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		status, err := p.svc.GenerationStatus(ctx, reportID)
		if err != nil {
			return nil, fmt.Errorf("poll generation status (attempt %d): %w", attempt, err)
		}
		if onUpdate != nil {
			onUpdate(*status)
		}
		if status.Terminal() {
			p.logger.Info("generation finished",
				logging.Field{Key: "report_id", Value: reportID},
				logging.Field{Key: "status", Value: status.Status},
				logging.Field{Key: "attempts", Value: attempt})
			return status, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %d attempts", ErrDeadlineExceeded, attempt)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	return nil, fmt.Errorf("%w (%d attempts)", ErrAttemptsExhausted, p.cfg.MaxAttempts)
}

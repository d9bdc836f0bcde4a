package generation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/raysh454/redline/internal/generation"
	"github.com/raysh454/redline/internal/logging"
	"github.com/raysh454/redline/internal/model"
)

type scriptedStatus struct {
	mu       sync.Mutex
	statuses []string
	reads    int
}

func (s *scriptedStatus) GenerationStatus(_ context.Context, reportID int64) (*model.GenerationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.reads
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}
	s.reads++
	return &model.GenerationStatus{ReportID: reportID, Status: s.statuses[idx]}, nil
}

func TestWait_ReturnsOnTerminalStatus(t *testing.T) {
	t.Parallel()
	svc := &scriptedStatus{statuses: []string{
		model.StatusPending, model.StatusInProgress, model.StatusCompleted,
	}}
	p := generation.NewPoller(generation.Config{Interval: time.Millisecond}, svc, logging.Nop{})

	var seen []string
	status, err := p.Wait(context.Background(), 1, func(s model.GenerationStatus) {
		seen = append(seen, s.Status)
	})
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status.Status != model.StatusCompleted {
		t.Errorf("expected completed, got %s", status.Status)
	}
	if len(seen) != 3 {
		t.Errorf("expected 3 observations, got %d", len(seen))
	}
}

func TestWait_ErrorStatusIsTerminalNotAnError(t *testing.T) {
	t.Parallel()
	svc := &scriptedStatus{statuses: []string{model.StatusError}}
	p := generation.NewPoller(generation.Config{Interval: time.Millisecond}, svc, logging.Nop{})

	status, err := p.Wait(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status.Status != model.StatusError {
		t.Errorf("expected error status, got %s", status.Status)
	}
}

func TestWait_AttemptCapTrips(t *testing.T) {
	t.Parallel()
	svc := &scriptedStatus{statuses: []string{model.StatusInProgress}}
	p := generation.NewPoller(generation.Config{
		Interval:    time.Millisecond,
		MaxAttempts: 3,
		Deadline:    time.Minute,
	}, svc, logging.Nop{})

	_, err := p.Wait(context.Background(), 1, nil)
	if !errors.Is(err, generation.ErrAttemptsExhausted) {
		t.Fatalf("expected ErrAttemptsExhausted, got %v", err)
	}
	svc.mu.Lock()
	reads := svc.reads
	svc.mu.Unlock()
	if reads != 3 {
		t.Errorf("expected exactly 3 polls, got %d", reads)
	}
}

func TestWait_DeadlineTrips(t *testing.T) {
	t.Parallel()
	svc := &scriptedStatus{statuses: []string{model.StatusInProgress}}
	p := generation.NewPoller(generation.Config{
		Interval:    50 * time.Millisecond,
		MaxAttempts: 1000,
		Deadline:    10 * time.Millisecond,
	}, svc, logging.Nop{})

	_, err := p.Wait(context.Background(), 1, nil)
	if !errors.Is(err, generation.ErrDeadlineExceeded) {
		t.Fatalf("expected ErrDeadlineExceeded, got %v", err)
	}
}

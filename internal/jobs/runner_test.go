package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type sweeperStub struct {
	reminderCalls atomic.Int64
	archiveCalls  atomic.Int64
	reminderErr   error
}

func (s *sweeperStub) SendDueReminders(context.Context) (int, error) {
	s.reminderCalls.Add(1)
	if s.reminderErr != nil {
		return 0, s.reminderErr
	}
	return 1, nil
}

func (s *sweeperStub) ArchivePastBookings(context.Context) (int, error) {
	s.archiveCalls.Add(1)
	return 0, nil
}

func TestRunnerSweepsUntilCancelled(t *testing.T) {
	stub := &sweeperStub{}
	runner := NewRunner(stub, time.Millisecond, time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for stub.reminderCalls.Load() < 3 || stub.archiveCalls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("sweeps did not run often enough before the deadline")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}

func TestRunnerKeepsSweepingAfterFailures(t *testing.T) {
	stub := &sweeperStub{reminderErr: errors.New("store unavailable")}
	runner := NewRunner(stub, time.Millisecond, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Run(ctx)

	deadline := time.After(2 * time.Second)
	for stub.reminderCalls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("failed sweeps stopped the loop")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestRunnerDefaultsIntervals(t *testing.T) {
	runner := NewRunner(&sweeperStub{}, 0, -time.Minute, nil)

	assert.Equal(t, time.Minute, runner.reminderInterval)
	assert.Equal(t, time.Hour, runner.archiveInterval)
}

func TestRunnerToleratesNilReceiver(t *testing.T) {
	var runner *Runner
	runner.Run(context.Background())

	NewRunner(nil, time.Minute, time.Hour, nil).Run(context.Background())
}

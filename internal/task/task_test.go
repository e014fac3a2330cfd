package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRun_Completes(t *testing.T) {
	t.Parallel()

	res := Run(context.Background(), time.Second, func(ctx context.Context, emit func(Step)) (string, error) {
		emit(Step{Name: "retrieve", Output: 3})
		emit(Step{Name: "generate"})
		return "answer", nil
	})

	if res.Err != nil || res.TimedOut {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Value != "answer" {
		t.Errorf("value: got %q", res.Value)
	}
	if len(res.Steps) != 2 || res.Steps[0].Name != "retrieve" || res.Steps[1].Name != "generate" {
		t.Errorf("steps: got %+v", res.Steps)
	}
}

func TestRun_TimeoutKeepsPartialSteps(t *testing.T) {
	t.Parallel()

	cancelled := make(chan struct{})
	res := Run(context.Background(), 50*time.Millisecond, func(ctx context.Context, emit func(Step)) (int, error) {
		emit(Step{Name: "retrieve"})
		<-ctx.Done()
		close(cancelled)
		return 0, ctx.Err()
	})

	if !res.TimedOut {
		t.Fatalf("expected timeout, got %+v", res)
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("err: got %v", res.Err)
	}
	if len(res.Steps) != 1 || res.Steps[0].Name != "retrieve" {
		t.Errorf("partial steps: got %+v", res.Steps)
	}
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Error("work context was not cancelled")
	}
}

func TestRun_Error(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	res := Run(context.Background(), 0, func(ctx context.Context, emit func(Step)) (int, error) {
		return 0, boom
	})
	if !errors.Is(res.Err, boom) || res.TimedOut {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestRun_EmitAfterTimeoutDoesNotBlock(t *testing.T) {
	t.Parallel()

	finished := make(chan struct{})
	res := Run(context.Background(), 20*time.Millisecond, func(ctx context.Context, emit func(Step)) (int, error) {
		<-ctx.Done()
		for i := 0; i < stepBuffer*2; i++ {
			emit(Step{Name: "late"})
		}
		close(finished)
		return 0, nil
	})
	if !res.TimedOut {
		t.Fatalf("expected timeout, got %+v", res)
	}
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("emit blocked after the collector stopped")
	}
}

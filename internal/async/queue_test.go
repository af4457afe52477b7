package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/pipeline"
)

type stubRunner struct {
	running  atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	deadline atomic.Bool
}

func (s *stubRunner) Run(ctx context.Context, req pipeline.Request) (pipeline.Outcome, error) {
	n := s.running.Add(1)
	defer s.running.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if _, ok := ctx.Deadline(); ok {
		s.deadline.Store(true)
	}
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return pipeline.Outcome{State: constants.RunFailed}, nil
	}
	if req.DocumentKey == "boom" {
		return pipeline.Outcome{}, errors.New("journal down")
	}
	return pipeline.Outcome{RunID: "run-" + req.DocumentKey, State: constants.RunCompleted}, nil
}

func TestRunQueueDrainsOnShutdown(t *testing.T) {
	runner := &stubRunner{delay: 5 * time.Millisecond}
	var (
		mu      sync.Mutex
		results = map[string]Result{}
	)
	q := NewRunQueue(runner, nil,
		WithWorkers(2),
		WithQueueSize(1),
		WithRunTimeout(time.Second),
		WithResultHook(func(r Result) {
			mu.Lock()
			results[r.Job.Request.DocumentKey] = r
			mu.Unlock()
		}),
	)

	keys := []string{"a", "b", "c", "d", "boom"}
	for _, k := range keys {
		if err := q.Enqueue(context.Background(), Job{Request: pipeline.Request{DocumentKey: k}}); err != nil {
			t.Fatalf("enqueue %s: %v", k, err)
		}
	}
	q.Shutdown(context.Background())

	if len(results) != len(keys) {
		t.Fatalf("got %d results, want %d", len(results), len(keys))
	}
	if r := results["a"]; r.Err != nil || r.Outcome.RunID != "run-a" || r.Job.SubmittedAt.IsZero() {
		t.Errorf("result a = %+v", r)
	}
	if results["boom"].Err == nil {
		t.Error("runner error not delivered")
	}
	if p := runner.peak.Load(); p > 2 {
		t.Errorf("peak concurrency %d exceeds workers", p)
	}
	if !runner.deadline.Load() {
		t.Error("runs were not given a deadline")
	}
}

func TestRunQueueRejectsAfterShutdown(t *testing.T) {
	q := NewRunQueue(&stubRunner{}, nil, WithWorkers(1))
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{Request: pipeline.Request{DocumentKey: "late"}})
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestRunQueueEnqueueHonoursContext(t *testing.T) {
	runner := &stubRunner{delay: 200 * time.Millisecond}
	q := NewRunQueue(runner, nil, WithWorkers(1), WithQueueSize(1))
	defer q.Shutdown(context.Background())

	// one job running, one buffered; the third must wait
	for _, k := range []string{"a", "b"} {
		if err := q.Enqueue(context.Background(), Job{Request: pipeline.Request{DocumentKey: k}}); err != nil {
			t.Fatal(err)
		}
	}
	time.Sleep(20 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, Job{Request: pipeline.Request{DocumentKey: "c"}}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

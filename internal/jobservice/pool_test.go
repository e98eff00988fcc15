package jobservice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeWorker struct {
	id          int
	terminated  atomic.Bool
	executeFail bool
	executeHang bool
}

func (w *fakeWorker) Transfer(ctx context.Context, conf FileConf) (OutcomeToken, error) {
	switch c := conf.(type) {
	case FileConfText:
		return NewOutcomeTokenFromText(uuid.New(), c.ResourceID.String())
	case FileConfRuntimeText:
		return NewOutcomeTokenFromText(uuid.New(), c.Content)
	case FileConfEmptyDirectory:
		return NewOutcomeTokenFromDirectory(uuid.New())
	default:
		return OutcomeToken{}, errors.New("unknown file conf")
	}
}

func (w *fakeWorker) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	if w.executeHang {
		<-ctx.Done()
		return ExecuteResult{}, ctx.Err()
	}
	if w.executeFail {
		return ExecuteResult{}, errors.New("boom")
	}
	out, err := NewOutcomeTokenFromDirectory(req.OutcomeID)
	if err != nil {
		return ExecuteResult{}, err
	}
	return ExecuteResult{ExitCode: 0, OutputPath: out}, nil
}

func (w *fakeWorker) Terminate(ctx context.Context) error {
	w.terminated.Store(true)
	return nil
}

type fakeFactory struct {
	mu       sync.Mutex
	next     int
	failNext bool
}

func (f *fakeFactory) NewWorker(ctx context.Context) (Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return nil, errors.New("provision failed")
	}
	f.next++
	return &fakeWorker{id: f.next}, nil
}

func waitForIdle(t *testing.T, js *JobService, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		js.mu.Lock()
		got := len(js.idle)
		js.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d idle workers", n)
}

func TestReserveProvisionsUpToDesired(t *testing.T) {
	js := NewJobService(&fakeFactory{}, Timeouts{})
	tokens, err := js.Reserve(context.Background(), 3)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(tokens))
	}
	waitForIdle(t, js, 3)
}

func TestExecuteConsumesTokenExactlyOnce(t *testing.T) {
	js := NewJobService(&fakeFactory{}, Timeouts{})
	tokens, err := js.Reserve(context.Background(), 1)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	waitForIdle(t, js, 1)

	ctx := context.Background()
	if _, _, err := js.Execute(ctx, tokens[0], nil, 1000); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, _, err := js.Execute(ctx, tokens[0], nil, 1000); err == nil {
		t.Fatal("expected second Execute on the same token to fail")
	} else if _, ok := err.(*ReservationError); !ok {
		t.Fatalf("expected *ReservationError, got %T (%v)", err, err)
	}
}

func TestExecuteFailureTerminatesWorkerInsteadOfReturningIt(t *testing.T) {
	factory := &fakeFactory{}
	js := NewJobService(factory, Timeouts{})
	tokens, err := js.Reserve(context.Background(), 1)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	waitForIdle(t, js, 1)

	js.mu.Lock()
	pw := js.idle[0]
	js.mu.Unlock()
	pw.worker.(*fakeWorker).executeFail = true

	ctx := context.Background()
	if _, _, err := js.Execute(ctx, tokens[0], nil, 1000); err == nil {
		t.Fatal("expected Execute to fail")
	} else if _, ok := err.(*ExecutionError); !ok {
		t.Fatalf("expected *ExecutionError, got %T (%v)", err, err)
	}

	js.mu.Lock()
	idleCount := len(js.idle)
	js.mu.Unlock()
	if idleCount != 0 {
		t.Fatalf("expected the tainted worker not to return to idle, got %d idle", idleCount)
	}
	if !pw.worker.(*fakeWorker).terminated.Load() {
		t.Fatal("expected the tainted worker to be terminated")
	}
}

func TestExecuteTimeoutReportedAsTimeoutKind(t *testing.T) {
	js := NewJobService(&fakeFactory{}, Timeouts{ExecutionTimeout: time.Millisecond})
	tokens, err := js.Reserve(context.Background(), 1)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	waitForIdle(t, js, 1)

	js.mu.Lock()
	js.idle[0].worker.(*fakeWorker).executeHang = true
	js.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	_, _, err = js.Execute(context.Background(), tokens[0], nil, 1000)
	if err == nil {
		t.Fatal("expected Execute to fail")
	}
	if !IsTimeout(err) {
		t.Fatalf("expected IsTimeout(err) to be true, got %v", err)
	}
}

func TestPlaceFileDedupesIdenticalResourceContent(t *testing.T) {
	factory := &fakeFactory{}
	js := NewJobService(factory, Timeouts{})
	if _, err := js.Reserve(context.Background(), 1); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	waitForIdle(t, js, 1)

	var wg sync.WaitGroup
	results := make([]OutcomeToken, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := js.PlaceFile(context.Background(), FileConfRuntimeText{Content: "same content"})
			if err != nil {
				t.Errorf("PlaceFile: %v", err)
				return
			}
			results[i] = out
		}(i)
	}
	wg.Wait()

	for i := 1; i < 4; i++ {
		if results[i].OutcomeID != results[0].OutcomeID {
			t.Fatalf("expected deduped placements to share an outcome id, got %v and %v", results[0].OutcomeID, results[i].OutcomeID)
		}
	}
}

func TestReserveRejectsNonPositiveCount(t *testing.T) {
	js := NewJobService(&fakeFactory{}, Timeouts{})
	if _, err := js.Reserve(context.Background(), 0); err == nil {
		t.Fatal("expected an error for a zero reservation count")
	}
}

func TestShutdownTerminatesIdleWorkers(t *testing.T) {
	js := NewJobService(&fakeFactory{}, Timeouts{})
	if _, err := js.Reserve(context.Background(), 2); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	waitForIdle(t, js, 2)

	js.mu.Lock()
	workers := make([]*fakeWorker, len(js.idle))
	for i, pw := range js.idle {
		workers[i] = pw.worker.(*fakeWorker)
	}
	js.mu.Unlock()

	if err := js.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	for _, w := range workers {
		if !w.terminated.Load() {
			t.Fatalf("expected worker %d to be terminated by Shutdown", w.id)
		}
	}
}

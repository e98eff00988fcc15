package runner

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/arclight-oj/judge/internal/ids"
	"github.com/arclight-oj/judge/internal/jobservice"
	"github.com/arclight-oj/judge/internal/procedure/runtime"
	"github.com/arclight-oj/judge/internal/verdict"
)

// fakeJobService never talks to a real worker: PlaceFile counts
// placements and returns a fresh outcome token, and Execute looks up a
// preconfigured stdout/exit-code pair by the execution's runtime id
// (threaded through TimeReservedMs, which the tests repurpose as an
// index since the fake has no other way to know which execution is
// running).
type fakeJobService struct {
	mu       sync.Mutex
	placed   int
	scripted map[int64]scriptedOutcome
}

type scriptedOutcome struct {
	stdout   string
	exitCode int
}

func (f *fakeJobService) Reserve(ctx context.Context, count int) ([]*jobservice.ReservationToken, error) {
	tokens := make([]*jobservice.ReservationToken, count)
	for i := range tokens {
		tokens[i] = jobservice.NewReservationToken()
	}
	return tokens, nil
}

func (f *fakeJobService) PlaceFile(ctx context.Context, conf jobservice.FileConf) (jobservice.OutcomeToken, error) {
	f.mu.Lock()
	f.placed++
	f.mu.Unlock()
	return jobservice.NewOutcomeTokenFromDirectory(uuid.New())
}

func (f *fakeJobService) Execute(ctx context.Context, token *jobservice.ReservationToken, deps []jobservice.ResolvedDependency, timeReservedMs int64) (jobservice.ExecuteResult, jobservice.OutcomeToken, error) {
	f.mu.Lock()
	scripted, ok := f.scripted[timeReservedMs]
	f.mu.Unlock()
	if !ok {
		return jobservice.ExecuteResult{}, jobservice.OutcomeToken{}, fmt.Errorf("no scripted outcome for key %d", timeReservedMs)
	}
	out, err := jobservice.NewOutcomeTokenFromDirectory(uuid.New())
	if err != nil {
		return jobservice.ExecuteResult{}, jobservice.OutcomeToken{}, err
	}
	return jobservice.ExecuteResult{Stdout: scripted.stdout, ExitCode: scripted.exitCode, OutputPath: out}, out, nil
}

func execution(runtimeID ids.RuntimeId, key int64, deps ...runtime.Dependency) runtime.Execution {
	return runtime.Execution{RuntimeId: runtimeID, Dependencies: deps, TimeReservedMs: key}
}

func TestRunnerEchoTrivialProcedure(t *testing.T) {
	scriptRuntimeID := ids.NewRuntimeId()
	execRuntimeID := ids.NewRuntimeId()

	procedure := runtime.Procedure{
		Texts: []runtime.Text{{RuntimeId: scriptRuntimeID, ResourceId: ids.NewResourceId()}},
		Executions: []runtime.Execution{
			execution(execRuntimeID, 1, runtime.Dependency{RuntimeId: scriptRuntimeID, EnvvarName: runtime.ScriptEnvvar}),
		},
	}

	js := &fakeJobService{scripted: map[int64]scriptedOutcome{
		1: {stdout: `{"Displayable":{"status":"AC","time":1,"memory":1,"score":0,"message":null,"continue_status":"Stop"}}`, exitCode: 0},
	}}

	r, err := New(context.Background(), js, procedure)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	jr, ok := results[execRuntimeID].(verdict.ExecutionJobResult)
	if !ok {
		t.Fatalf("expected ExecutionJobResult for %s, got %T", execRuntimeID, results[execRuntimeID])
	}
	d, ok := jr.Result.(verdict.Displayable)
	if !ok {
		t.Fatalf("expected Displayable, got %T", jr.Result)
	}
	if d.Status != verdict.StatusAC {
		t.Fatalf("expected AC, got %v", d.Status)
	}
}

func TestRunnerLinearChainStopsDownstream(t *testing.T) {
	a, b, c := ids.NewRuntimeId(), ids.NewRuntimeId(), ids.NewRuntimeId()

	procedure := runtime.Procedure{
		Executions: []runtime.Execution{
			execution(a, 1),
			execution(b, 2, runtime.Dependency{RuntimeId: a, EnvvarName: "A"}),
			execution(c, 3, runtime.Dependency{RuntimeId: b, EnvvarName: "B"}),
		},
	}

	continueResult := `{"Displayable":{"status":"AC","time":1,"memory":1,"score":0,"message":null,"continue_status":"Continue"}}`
	stopResult := `{"Displayable":{"status":"AC","time":1,"memory":1,"score":0,"message":null,"continue_status":"Stop"}}`

	js := &fakeJobService{scripted: map[int64]scriptedOutcome{
		1: {stdout: continueResult, exitCode: 0},
		2: {stdout: stopResult, exitCode: 0},
	}}

	r, err := New(context.Background(), js, procedure)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, ok := results[a].(verdict.ExecutionJobResult); !ok {
		t.Fatalf("expected a to have executed, got %T", results[a])
	}
	if _, ok := results[b].(verdict.ExecutionJobResult); !ok {
		t.Fatalf("expected b to have executed, got %T", results[b])
	}
	if _, ok := results[c].(verdict.EarlyExit); !ok {
		t.Fatalf("expected c to be an early exit, got %T", results[c])
	}
}

func TestRunnerDiamondIndependentStops(t *testing.T) {
	a, b, c, d := ids.NewRuntimeId(), ids.NewRuntimeId(), ids.NewRuntimeId(), ids.NewRuntimeId()

	procedure := runtime.Procedure{
		Executions: []runtime.Execution{
			execution(a, 1),
			execution(b, 2, runtime.Dependency{RuntimeId: a, EnvvarName: "A"}),
			execution(c, 3, runtime.Dependency{RuntimeId: a, EnvvarName: "A"}),
			execution(d, 4,
				runtime.Dependency{RuntimeId: b, EnvvarName: "B"},
				runtime.Dependency{RuntimeId: c, EnvvarName: "C"},
			),
		},
	}

	continueResult := `{"Displayable":{"status":"AC","time":1,"memory":1,"score":0,"message":null,"continue_status":"Continue"}}`
	stopResult := `{"Displayable":{"status":"AC","time":1,"memory":1,"score":0,"message":null,"continue_status":"Stop"}}`

	js := &fakeJobService{scripted: map[int64]scriptedOutcome{
		1: {stdout: continueResult, exitCode: 0},
		2: {stdout: stopResult, exitCode: 0},
		3: {stdout: continueResult, exitCode: 0},
	}}

	r, err := New(context.Background(), js, procedure)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, id := range []ids.RuntimeId{a, b, c} {
		if _, ok := results[id].(verdict.ExecutionJobResult); !ok {
			t.Fatalf("expected %s to have executed, got %T", id, results[id])
		}
	}
	if _, ok := results[d].(verdict.EarlyExit); !ok {
		t.Fatalf("expected d to be an early exit, got %T", results[d])
	}
}

package convert

import (
	"testing"

	"github.com/arclight-oj/judge/internal/ids"
	"github.com/arclight-oj/judge/internal/procedure/registered"
)

func TestConvertPreservesShapeAndResolvesLabels(t *testing.T) {
	scriptDep := ids.NewDepId()
	sourceDep := ids.NewDepId()
	execDep := ids.NewDepId()

	r := registered.Procedure{
		RuntimeTexts: []registered.RuntimeText{
			{Label: "source", DepId: sourceDep},
		},
		Texts: []registered.Text{
			{ResourceId: ids.NewResourceId(), DepId: scriptDep},
		},
		Executions: []registered.Execution{
			{
				DepId: execDep,
				Dependencies: []registered.Dependency{
					{DepId: sourceDep, EnvvarName: "SOURCE"},
					{DepId: scriptDep, EnvvarName: registered.ScriptEnvvar},
				},
			},
		},
	}

	q, runtimeToDep, err := Convert(r, map[string]string{"source": "print('hi')"})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	totalRegistered := len(r.RuntimeTexts) + len(r.Texts) + len(r.EmptyDirectories) + len(r.Executions)
	totalRuntime := len(q.RuntimeTexts) + len(q.Texts) + len(q.EmptyDirectories) + len(q.Executions)
	if totalRegistered != totalRuntime {
		t.Fatalf("node count mismatch: registered=%d runtime=%d", totalRegistered, totalRuntime)
	}
	if len(runtimeToDep) != totalRegistered {
		t.Fatalf("expected runtimeToDep to cover every node, got %d want %d", len(runtimeToDep), totalRegistered)
	}

	if len(q.RuntimeTexts) != 1 || q.RuntimeTexts[0].Content != "print('hi')" {
		t.Fatalf("expected resolved runtime text content, got %+v", q.RuntimeTexts)
	}

	if len(q.Executions) != 1 || len(q.Executions[0].Dependencies) != 2 {
		t.Fatalf("expected execution to carry both dependencies, got %+v", q.Executions)
	}

	for _, dep := range q.Executions[0].Dependencies {
		if _, ok := runtimeToDep[dep.RuntimeId]; !ok {
			t.Fatalf("execution dependency %s is not a mapped runtime node", dep.RuntimeId)
		}
	}
}

func TestConvertMissingLabelFails(t *testing.T) {
	r := registered.Procedure{
		RuntimeTexts: []registered.RuntimeText{
			{Label: "X", DepId: ids.NewDepId()},
		},
	}

	_, _, err := Convert(r, map[string]string{})
	if err == nil {
		t.Fatal("expected RuntimeTextNotFound")
	}
	notFound, ok := err.(*RuntimeTextNotFound)
	if !ok {
		t.Fatalf("expected *RuntimeTextNotFound, got %T", err)
	}
	if notFound.Label != "X" {
		t.Fatalf("expected label X, got %q", notFound.Label)
	}
}

func TestConvertEmptyProcedure(t *testing.T) {
	q, mapping, err := Convert(registered.Procedure{}, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(mapping) != 0 {
		t.Fatalf("expected empty mapping, got %d entries", len(mapping))
	}
	if len(q.Executions) != 0 || len(q.Texts) != 0 {
		t.Fatalf("expected empty runtime procedure, got %+v", q)
	}
}

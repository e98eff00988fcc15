// Package convert implements the registered→runtime transform: it
// mints a fresh RuntimeId per node of a registered.Procedure, resolves
// every runtime-text label against a caller-supplied label→content map,
// and preserves the DAG's edge set under the new identifiers.
package convert

import (
	"fmt"

	"github.com/arclight-oj/judge/internal/ids"
	"github.com/arclight-oj/judge/internal/procedure/registered"
	"github.com/arclight-oj/judge/internal/procedure/runtime"
)

// RuntimeTextNotFound is returned when the label map passed to Convert is
// missing an entry a registered.RuntimeText node requires.
type RuntimeTextNotFound struct {
	Label string
}

func (e *RuntimeTextNotFound) Error() string {
	return fmt.Sprintf("runtime text not found: %q", e.Label)
}

// InternalError is returned when an identifier lookup inconsistency is
// encountered — a Dependency referencing a DepId that is not a node of
// the input procedure. This would indicate R was built incorrectly
// upstream; Convert itself never produces such a graph.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("convert: internal error: %s", e.Reason)
}

// Convert transforms a registered procedure into a runtime one, resolving
// every runtime-text label from labels. It returns the runtime procedure
// alongside a RuntimeId→DepId map recording which registered node each
// runtime node was minted from (used by the runner and by service-glue
// to re-attach verdicts to problem-scoped names).
func Convert(r registered.Procedure, labels map[string]string) (runtime.Procedure, map[ids.RuntimeId]ids.DepId, error) {
	depToRuntime := make(map[ids.DepId]ids.RuntimeId, len(r.AllDepIds()))
	for _, dep := range r.AllDepIds() {
		depToRuntime[dep] = ids.NewRuntimeId()
	}

	runtimeToDep := make(map[ids.RuntimeId]ids.DepId, len(depToRuntime))
	for dep, rt := range depToRuntime {
		runtimeToDep[rt] = dep
	}

	var runtimeTexts []runtime.RuntimeText
	for _, rt := range r.RuntimeTexts {
		content, ok := labels[rt.Label]
		if !ok {
			return runtime.Procedure{}, nil, &RuntimeTextNotFound{Label: rt.Label}
		}
		runtimeTexts = append(runtimeTexts, runtime.RuntimeText{
			RuntimeId: depToRuntime[rt.DepId],
			Content:   content,
		})
	}

	var texts []runtime.Text
	for _, t := range r.Texts {
		texts = append(texts, runtime.Text{
			RuntimeId:  depToRuntime[t.DepId],
			ResourceId: t.ResourceId,
		})
	}

	var emptyDirs []runtime.EmptyDirectory
	for _, ed := range r.EmptyDirectories {
		emptyDirs = append(emptyDirs, runtime.EmptyDirectory{RuntimeId: depToRuntime[ed.DepId]})
	}

	var executions []runtime.Execution
	for _, e := range r.Executions {
		deps := make([]runtime.Dependency, 0, len(e.Dependencies))
		for _, d := range e.Dependencies {
			runtimeID, ok := depToRuntime[d.DepId]
			if !ok {
				return runtime.Procedure{}, nil, &InternalError{Reason: fmt.Sprintf("execution %s: dependency %s is not a node of the procedure", e.DepId, d.DepId)}
			}
			deps = append(deps, runtime.Dependency{RuntimeId: runtimeID, EnvvarName: d.EnvvarName})
		}
		executions = append(executions, runtime.Execution{
			RuntimeId:      depToRuntime[e.DepId],
			Dependencies:   deps,
			TimeReservedMs: e.TimeReservedMs,
		})
	}

	return runtime.Procedure{
		RuntimeTexts:     runtimeTexts,
		Texts:            texts,
		EmptyDirectories: emptyDirs,
		Executions:       executions,
	}, runtimeToDep, nil
}

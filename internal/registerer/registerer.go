// Package registerer implements the writer→registered transform:
// it allocates a DepId per named node of a writer.Procedure, interns
// script/text contents into a content store under fresh or deduped
// ResourceIds, and persists node names into a per-problem name table so
// that per-execution verdicts can later be re-attached to human-readable
// testcase names.
package registerer

import (
	"context"
	"fmt"

	"github.com/arclight-oj/judge/internal/ids"
	"github.com/arclight-oj/judge/internal/procedure/registered"
	"github.com/arclight-oj/judge/internal/procedure/writer"
)

// ContentStore is the subset of the content store server the
// registerer depends on: interning text content under a ResourceId.
type ContentStore interface {
	Register(ctx context.Context, id ids.ResourceId, content string) error
}

// ResourceRefs is the subset of the sweeper's refcount side table
// the registerer depends on: every ResourceId a registered procedure
// binds gets its refcount bumped, so the sweeper never reclaims a blob
// still in use. Optional — a Registerer constructed with a nil
// ResourceRefs skips ref tracking entirely, for callers (tests, the
// preset builder operating against an in-memory store) that do not run
// a sweeper.
type ResourceRefs interface {
	IncrRef(ctx context.Context, id ids.ResourceId) error
}

// NameTable is the subset of the name side table the registerer
// depends on: persisting a problem-scoped DepId→name mapping.
type NameTable interface {
	InsertMany(ctx context.Context, problemID string, entries map[ids.DepId]string) error
}

// Registerer transforms writer procedures into registered ones.
type Registerer struct {
	store ContentStore
	names NameTable
	refs  ResourceRefs
}

// New constructs a Registerer over a content store and a name table,
// with no refcount tracking.
func New(store ContentStore, names NameTable) *Registerer {
	return &Registerer{store: store, names: names}
}

// WithResourceRefs returns a copy of r that also bumps refs for every
// ResourceId it binds, wiring the registerer into the sweeper's
// lifecycle accounting.
func (r *Registerer) WithResourceRefs(refs ResourceRefs) *Registerer {
	return &Registerer{store: r.store, names: r.names, refs: refs}
}

// Register transpiles a writer.Procedure and writes every
// Text/Script content to the content store and persisted every node name
// into the name table under problemID.
//
// On InvalidSchemaError no store or name-table writes are attempted (the
// error is detected before any I/O). On InternalError the caller is
// responsible for clearing any partially written name-table rows for
// problemID (e.g. via contentstore.NameTable.RemoveMany) before
// retrying.
func (r *Registerer) Register(ctx context.Context, problemID string, p writer.Procedure) (registered.Procedure, error) {
	nameToID, contentToID, proc, err := transpile(p)
	if err != nil {
		return registered.Procedure{}, err
	}

	for content, resourceID := range contentToID {
		if err := r.store.Register(ctx, resourceID, content); err != nil {
			return registered.Procedure{}, &InternalError{Message: "content store register failed", Cause: err}
		}
		if r.refs != nil {
			if err := r.refs.IncrRef(ctx, resourceID); err != nil {
				return registered.Procedure{}, &InternalError{Message: "resource ref increment failed", Cause: err}
			}
		}
	}

	names := make(map[ids.DepId]string, len(nameToID))
	for name, depID := range nameToID {
		names[depID] = name
	}
	if err := r.names.InsertMany(ctx, problemID, names); err != nil {
		return registered.Procedure{}, &InternalError{Message: "name table insert failed", Cause: err}
	}

	return proc, nil
}

// transpile is the pure, side-effect-free core of the writer→registered
// transform: it allocates identifiers and validates the graph, but
// performs no I/O. It returns the registered procedure alongside the
// content and name maps the caller must then persist.
func transpile(p writer.Procedure) (nameToID map[string]ids.DepId, contentToID map[string]ids.ResourceId, proc registered.Procedure, err error) {
	nameToID = make(map[string]ids.DepId)

	for _, r := range p.Resources {
		name := resourceName(r)
		if _, exists := nameToID[name]; exists {
			return nil, nil, registered.Procedure{}, &InvalidSchemaError{Reason: fmt.Sprintf("duplicate node name %q", name)}
		}
		nameToID[name] = ids.NewDepId()
	}
	for _, s := range p.Scripts {
		if _, exists := nameToID[s.Name]; exists {
			return nil, nil, registered.Procedure{}, &InvalidSchemaError{Reason: fmt.Sprintf("duplicate node name %q", s.Name)}
		}
		nameToID[s.Name] = ids.NewDepId()
	}
	for _, e := range p.Executions {
		if _, exists := nameToID[e.Name]; exists {
			return nil, nil, registered.Procedure{}, &InvalidSchemaError{Reason: fmt.Sprintf("duplicate node name %q", e.Name)}
		}
		nameToID[e.Name] = ids.NewDepId()
	}

	if err := validateReferences(p, nameToID); err != nil {
		return nil, nil, registered.Procedure{}, err
	}
	if cyclic := executionGraphHasCycle(p); cyclic {
		return nil, nil, registered.Procedure{}, &InvalidSchemaError{Reason: "execution-dependency graph contains a cycle"}
	}

	contentToID = make(map[string]ids.ResourceId)
	for _, r := range p.Resources {
		if tf, ok := r.(writer.TextFile); ok {
			if _, exists := contentToID[tf.Content]; !exists {
				contentToID[tf.Content] = ids.NewResourceId()
			}
		}
	}
	for _, s := range p.Scripts {
		if _, exists := contentToID[s.Content]; !exists {
			contentToID[s.Content] = ids.NewResourceId()
		}
	}

	var runtimeTexts []registered.RuntimeText
	var texts []registered.Text
	var emptyDirs []registered.EmptyDirectory

	for _, r := range p.Resources {
		switch v := r.(type) {
		case writer.TextFile:
			texts = append(texts, registered.Text{
				ResourceId: contentToID[v.Content],
				DepId:      nameToID[v.Name],
			})
		case writer.EmptyDirectory:
			emptyDirs = append(emptyDirs, registered.EmptyDirectory{DepId: nameToID[v.Name]})
		case writer.RuntimeTextFile:
			runtimeTexts = append(runtimeTexts, registered.RuntimeText{
				Label: v.Label,
				DepId: nameToID[v.Name],
			})
		}
	}

	var executions []registered.Execution
	for _, e := range p.Executions {
		deps := make([]registered.Dependency, 0, len(e.Dependencies)+1)
		for _, d := range e.Dependencies {
			deps = append(deps, registered.Dependency{
				DepId:      nameToID[d.RefTo],
				EnvvarName: d.EnvvarName,
			})
		}
		deps = append(deps, registered.Dependency{
			DepId:      nameToID[e.ScriptName],
			EnvvarName: registered.ScriptEnvvar,
		})
		executions = append(executions, registered.Execution{
			DepId:          nameToID[e.Name],
			Dependencies:   deps,
			TimeReservedMs: e.TimeReservedMs,
		})
	}

	for _, s := range p.Scripts {
		texts = append(texts, registered.Text{
			ResourceId: contentToID[s.Content],
			DepId:      nameToID[s.Name],
		})
	}

	proc = registered.Procedure{
		RuntimeTexts:     runtimeTexts,
		Texts:            texts,
		EmptyDirectories: emptyDirs,
		Executions:       executions,
	}
	return nameToID, contentToID, proc, nil
}

func resourceName(r writer.ResourceKind) string {
	switch v := r.(type) {
	case writer.TextFile:
		return v.Name
	case writer.RuntimeTextFile:
		return v.Name
	case writer.EmptyDirectory:
		return v.Name
	default:
		return ""
	}
}

func validateReferences(p writer.Procedure, nameToID map[string]ids.DepId) error {
	for _, e := range p.Executions {
		if _, ok := nameToID[e.ScriptName]; !ok {
			return &InvalidSchemaError{Reason: fmt.Sprintf("execution %q: script %q not found", e.Name, e.ScriptName)}
		}
		for _, d := range e.Dependencies {
			if _, ok := nameToID[d.RefTo]; !ok {
				return &InvalidSchemaError{Reason: fmt.Sprintf("execution %q: dependency %q not found", e.Name, d.RefTo)}
			}
		}
	}
	return nil
}

func executionGraphHasCycle(p writer.Procedure) bool {
	var edges []edge[string]
	for _, e := range p.Executions {
		for _, d := range e.Dependencies {
			// Only dependency edges between two executions can
			// participate in a cycle: file/script nodes have no
			// outgoing execution edges.
			edges = append(edges, edge[string]{From: e.Name, To: d.RefTo})
		}
	}
	return hasCycle(edges)
}

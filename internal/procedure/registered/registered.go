// Package registered defines the ID-keyed persistent form of a judge
// procedure, produced by internal/registerer from a writer.Procedure and
// consumed by internal/convert to produce a runtime procedure.
package registered

import "github.com/arclight-oj/judge/internal/ids"

// RuntimeText binds a runtime-time label to the node that will receive
// its resolved content.
type RuntimeText struct {
	Label string
	DepId ids.DepId
}

// Text binds a persisted content blob to a node. Several Text entries
// may share a ResourceId when the registerer chose to dedupe by content.
type Text struct {
	ResourceId ids.ResourceId
	DepId      ids.DepId
}

// EmptyDirectory is a node materialized as a fresh empty directory on
// every run.
type EmptyDirectory struct {
	DepId ids.DepId
}

// Dependency pairs a referenced DepId with the envvar name under which
// it is exposed.
type Dependency struct {
	DepId      ids.DepId
	EnvvarName string
}

// Execution is a node of the execution-dependency graph. Its script is
// represented as a Dependency with EnvvarName "SCRIPT".
type Execution struct {
	DepId          ids.DepId
	Dependencies   []Dependency
	TimeReservedMs int64
}

// Procedure is the full ID-keyed persistent DAG.
type Procedure struct {
	RuntimeTexts    []RuntimeText
	Texts           []Text
	EmptyDirectories []EmptyDirectory
	Executions      []Execution
}

// ScriptEnvvar is the fixed environment-variable name under which an
// execution's script dependency is exposed.
const ScriptEnvvar = "SCRIPT"

// AllDepIds returns every DepId that is a node of the procedure (not
// merely referenced as a dependency), used by invariant checks and by
// the name side table.
func (p Procedure) AllDepIds() []ids.DepId {
	out := make([]ids.DepId, 0, len(p.RuntimeTexts)+len(p.Texts)+len(p.EmptyDirectories)+len(p.Executions))
	for _, rt := range p.RuntimeTexts {
		out = append(out, rt.DepId)
	}
	for _, t := range p.Texts {
		out = append(out, t.DepId)
	}
	for _, ed := range p.EmptyDirectories {
		out = append(out, ed.DepId)
	}
	for _, e := range p.Executions {
		out = append(out, e.DepId)
	}
	return out
}

// Package runtime defines the per-run form of a judge procedure: the same
// DAG shape as registered.Procedure, but keyed by a fresh ids.RuntimeId
// per node and with runtime-text labels already resolved to content.
// Produced by internal/convert, consumed by internal/runner.
package runtime

import "github.com/arclight-oj/judge/internal/ids"

// RuntimeText carries resolved content instead of a label.
type RuntimeText struct {
	RuntimeId ids.RuntimeId
	Content   string
}

// Text binds a persisted content blob to a runtime node.
type Text struct {
	RuntimeId  ids.RuntimeId
	ResourceId ids.ResourceId
}

// EmptyDirectory is a runtime node materialized as a fresh directory.
type EmptyDirectory struct {
	RuntimeId ids.RuntimeId
}

// Dependency pairs a dependency's RuntimeId with the envvar it is bound
// to for one execution.
type Dependency struct {
	RuntimeId  ids.RuntimeId
	EnvvarName string
}

// Execution is a runtime node of the execution-dependency graph.
type Execution struct {
	RuntimeId      ids.RuntimeId
	Dependencies   []Dependency
	TimeReservedMs int64
}

// Procedure is the full per-run DAG, structurally identical to
// registered.Procedure modulo identifier kind and text resolution.
type Procedure struct {
	RuntimeTexts     []RuntimeText
	Texts            []Text
	EmptyDirectories []EmptyDirectory
	Executions       []Execution
}

// ScriptEnvvar mirrors registered.ScriptEnvvar.
const ScriptEnvvar = "SCRIPT"

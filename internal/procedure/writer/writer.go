// Package writer defines the authoring form of a judge procedure: a DAG
// of named resources, scripts, and executions. This form is external to
// core persistence — it exists only in memory while a problem is being
// authored (by a human, by a preset builder, or by a test) and is
// consumed exactly once by internal/registerer.
package writer

import "fmt"

// ResourceKind is the sum type of the three resource node shapes a writer
// procedure can declare.
type ResourceKind interface {
	resourceName() string
	isResourceKind()
}

// TextFile is a literal text blob, interned into the content store at
// registration time.
type TextFile struct {
	Name    string
	Content string
}

func (t TextFile) resourceName() string { return t.Name }
func (TextFile) isResourceKind()        {}

// RuntimeTextFile's content is supplied at run time under Label (e.g.
// the submission source, a resource limit) rather than at authoring
// time.
type RuntimeTextFile struct {
	Name  string
	Label string
}

func (r RuntimeTextFile) resourceName() string { return r.Name }
func (RuntimeTextFile) isResourceKind()        {}

// EmptyDirectory is materialized as a fresh empty directory on every run.
type EmptyDirectory struct {
	Name string
}

func (e EmptyDirectory) resourceName() string { return e.Name }
func (EmptyDirectory) isResourceKind()        {}

// Script is the entry point of an Execution: a literal text blob holding
// the shell script to run.
type Script struct {
	Name    string
	Content string
}

// Dependency pairs a referenced node name with the environment-variable
// name under which its resolved file path is exposed to the execution.
type Dependency struct {
	RefTo      string
	EnvvarName string
}

// Execution is one node of the execution-dependency graph: it names the
// script to run, the dependencies to expose as files, and a scheduling
// hint (time_reserved_ms) consumed by the job service.
type Execution struct {
	Name            string
	ScriptName      string
	Dependencies    []Dependency
	TimeReservedMs  int64
}

// Procedure is the full authoring-time DAG: named resources, scripts, and
// executions, addressed by name until internal/registerer mints IDs.
type Procedure struct {
	Resources  []ResourceKind
	Scripts    []Script
	Executions []Execution
}

// Builder is a convenience construction helper mirroring the original
// implementation's procedure builder: it rejects duplicate names and
// dangling dependency references as soon as a node is added, rather than
// deferring all validation to registration time.
type Builder struct {
	names      map[string]struct{}
	resources  []ResourceKind
	scripts    []Script
	executions []Execution
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{names: make(map[string]struct{})}
}

// AddResourceError is returned by AddResource, AddScript, and AddExecution.
type AddResourceError struct {
	Name   string
	Reason string
}

func (e *AddResourceError) Error() string {
	return fmt.Sprintf("procedure builder: %s: %s", e.Name, e.Reason)
}

func (b *Builder) claim(name string) error {
	if _, exists := b.names[name]; exists {
		return &AddResourceError{Name: name, Reason: "name already exists"}
	}
	b.names[name] = struct{}{}
	return nil
}

// AddResource adds a resource node and returns its name.
func (b *Builder) AddResource(r ResourceKind) (string, error) {
	name := r.resourceName()
	if err := b.claim(name); err != nil {
		return "", err
	}
	b.resources = append(b.resources, r)
	return name, nil
}

// AddScript adds a script node and returns its name.
func (b *Builder) AddScript(s Script) (string, error) {
	if err := b.claim(s.Name); err != nil {
		return "", err
	}
	b.scripts = append(b.scripts, s)
	return s.Name, nil
}

// AddExecution adds an execution node, checking that its script and every
// dependency reference an already-added node. Returns the execution's
// name.
func (b *Builder) AddExecution(e Execution) (string, error) {
	if _, ok := b.names[e.ScriptName]; !ok {
		return "", &AddResourceError{Name: e.ScriptName, Reason: "script not found"}
	}
	for _, dep := range e.Dependencies {
		if _, ok := b.names[dep.RefTo]; !ok {
			return "", &AddResourceError{Name: dep.RefTo, Reason: "dependency not found"}
		}
	}
	if err := b.claim(e.Name); err != nil {
		return "", err
	}
	b.executions = append(b.executions, e)
	return e.Name, nil
}

// Build returns the accumulated Procedure.
func (b *Builder) Build() Procedure {
	return Procedure{
		Resources:  append([]ResourceKind(nil), b.resources...),
		Scripts:    append([]Script(nil), b.scripts...),
		Executions: append([]Execution(nil), b.executions...),
	}
}

// Package ids defines the three opaque identifier types used across the
// judge execution engine: DepId (a dependency node in a registered
// procedure), ResourceId (a content blob), and RuntimeId (a per-run node
// instance).
//
// All three share a UUID representation but are distinct Go types so that
// mixing them — say, passing a ResourceId where a DepId is expected — is
// a compile-time error. Conversion between them and a raw uuid.UUID is
// only ever done explicitly, at the edges (persistence, wire encoding).
package ids

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// DepId identifies a node in a registered procedure (persistent, problem
// scoped: text, runtime-text, empty-directory, or execution).
type DepId struct{ id uuid.UUID }

// NewDepId mints a fresh DepId.
func NewDepId() DepId { return DepId{id: uuid.New()} }

// DepIdFromUUID converts a raw UUID into a DepId at a trust boundary
// (e.g. reading a column back out of Postgres).
func DepIdFromUUID(u uuid.UUID) DepId { return DepId{id: u} }

// ParseDepId parses the canonical string form of a DepId.
func ParseDepId(s string) (DepId, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return DepId{}, fmt.Errorf("parse dep id %q: %w", s, err)
	}
	return DepId{id: u}, nil
}

func (d DepId) UUID() uuid.UUID  { return d.id }
func (d DepId) String() string   { return d.id.String() }
func (d DepId) IsZero() bool     { return d.id == uuid.Nil }
func (d DepId) Value() (driver.Value, error) { return d.id.String(), nil }

func (d DepId) MarshalJSON() ([]byte, error) { return json.Marshal(d.id.String()) }

func (d *DepId) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDepId(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ResourceId identifies a content blob interned into the content store.
type ResourceId struct{ id uuid.UUID }

func NewResourceId() ResourceId { return ResourceId{id: uuid.New()} }

func ResourceIdFromUUID(u uuid.UUID) ResourceId { return ResourceId{id: u} }

func ParseResourceId(s string) (ResourceId, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ResourceId{}, fmt.Errorf("parse resource id %q: %w", s, err)
	}
	return ResourceId{id: u}, nil
}

func (r ResourceId) UUID() uuid.UUID  { return r.id }
func (r ResourceId) String() string   { return r.id.String() }
func (r ResourceId) IsZero() bool     { return r.id == uuid.Nil }
func (r ResourceId) Value() (driver.Value, error) { return r.id.String(), nil }

func (r ResourceId) MarshalJSON() ([]byte, error) { return json.Marshal(r.id.String()) }

func (r *ResourceId) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseResourceId(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// RuntimeId identifies a node instance within a single run of the runtime
// procedure. It never outlives one judge call.
type RuntimeId struct{ id uuid.UUID }

func NewRuntimeId() RuntimeId { return RuntimeId{id: uuid.New()} }

func RuntimeIdFromUUID(u uuid.UUID) RuntimeId { return RuntimeId{id: u} }

func (r RuntimeId) UUID() uuid.UUID { return r.id }
func (r RuntimeId) String() string  { return r.id.String() }
func (r RuntimeId) IsZero() bool    { return r.id == uuid.Nil }

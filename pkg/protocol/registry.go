package protocol

import "fmt"

// ObjectInfo is the registry's entry for one OID (spec.md §3). The OID
// catalog itself — the inventory of actual entries — is supplied by the
// embedder; this package only defines its shape and indexing.
type ObjectInfo struct {
	ObjectID  uint32
	Name      string
	Group     ObjectGroup
	Description string
	Unit      string

	RequestDataType  DataType
	ResponseDataType DataType

	// EnumMap labels the integer values of an ENUM-typed object. Nil for
	// non-ENUM entries.
	EnumMap map[int64]string

	// SimData is a simulator-only default value, unused by the codec.
	SimData any
}

// Registry is an immutable, indexed collection of ObjectInfo. Build it
// once with NewRegistry and never mutate it afterward; as logically
// read-only data it is safe to share across goroutines.
type Registry struct {
	byID   map[uint32]ObjectInfo
	byName map[string]ObjectInfo
}

// NewRegistry builds a Registry from entries, indexing each by both
// ObjectID and Name. It returns an error if any ObjectID or Name repeats
// across entries (spec.md §3 invariants); there is no silent last-wins
// overwrite.
func NewRegistry(entries []ObjectInfo) (*Registry, error) {
	r := &Registry{
		byID:   make(map[uint32]ObjectInfo, len(entries)),
		byName: make(map[string]ObjectInfo, len(entries)),
	}
	for _, e := range entries {
		if _, exists := r.byID[e.ObjectID]; exists {
			return nil, fmt.Errorf("protocol: duplicate object id 0x%08X", e.ObjectID)
		}
		if _, exists := r.byName[e.Name]; exists {
			return nil, fmt.Errorf("protocol: duplicate object name %q", e.Name)
		}
		r.byID[e.ObjectID] = e
		r.byName[e.Name] = e
	}
	return r, nil
}

// GetByID looks up an entry by its 32-bit object id.
func (r *Registry) GetByID(id uint32) (ObjectInfo, error) {
	e, ok := r.byID[id]
	if !ok {
		return ObjectInfo{}, &LookupError{ID: id}
	}
	return e, nil
}

// GetByName looks up an entry by its dotted-path name.
func (r *Registry) GetByName(name string) (ObjectInfo, error) {
	e, ok := r.byName[name]
	if !ok {
		return ObjectInfo{}, &LookupError{Name: name, ByName: true}
	}
	return e, nil
}

// Len returns the number of entries in the registry.
func (r *Registry) Len() int {
	return len(r.byID)
}

// All returns every entry, in no particular order. Intended for catalog
// export and diagnostic tooling, not hot-path lookups.
func (r *Registry) All() []ObjectInfo {
	out := make([]ObjectInfo, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	return out
}

package detective

import (
	"bytes"
	"encoding/json"
	"slices"
)

// Specifier is one binding introduced or re-exported through a dependency.
type Specifier struct {
	// Name is the local binding for imports and the exported name for re-exports.
	Name string `json:"name"`
	// IsDefault is true if the binding is the module's default export.
	IsDefault bool `json:"isDefault"`
	// Exported is true if the binding is surfaced again by an export of the
	// current file. It only ever flips from false to true.
	Exported bool `json:"exported"`
}

// DependencyRecord holds everything known about one dependency identifier.
type DependencyRecord struct {
	// ImportSpecifiers is in source order and is not de-duplicated. It is
	// nil for bare, dynamic and require-like references.
	ImportSpecifiers []Specifier `json:"importSpecifiers,omitempty"`
}

// DependencyMap maps dependency identifiers, as written in the source, to
// their records. Keys keep the order in which the dependencies were first
// seen.
type DependencyMap struct {
	keys    []string
	records map[string]*DependencyRecord
}

func newDependencyMap() *DependencyMap {
	return &DependencyMap{records: make(map[string]*DependencyRecord)}
}

// Len returns the number of dependencies.
func (m *DependencyMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the dependency identifiers in traversal order.
func (m *DependencyMap) Keys() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// Get returns a copy of the record for id.
func (m *DependencyMap) Get(id string) (DependencyRecord, bool) {
	if m == nil {
		return DependencyRecord{}, false
	}
	rec, ok := m.records[id]
	if !ok {
		return DependencyRecord{}, false
	}
	return DependencyRecord{ImportSpecifiers: slices.Clone(rec.ImportSpecifiers)}, true
}

// MarshalJSON encodes the map as a JSON object whose keys are in traversal
// order.
func (m *DependencyMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		rec, err := json.Marshal(m.records[id])
		if err != nil {
			return nil, err
		}
		buf.Write(rec)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

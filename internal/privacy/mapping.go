package privacy

import (
	"bytes"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// MappingEntry associates a placeholder with the text it replaced.
type MappingEntry struct {
	Placeholder string
	Original    string
}

// MappingTable is an insertion-ordered placeholder -> original map. Order
// does not affect restoration but is kept across JSON round-trips so that
// serialized snapshots read back identically.
type MappingTable struct {
	pairs *orderedmap.OrderedMap[string, string]
}

func newPairs() *orderedmap.OrderedMap[string, string] {
	return orderedmap.New[string, string](orderedmap.WithDisableHTMLEscape[string, string]())
}

// NewMappingTable returns an empty table.
func NewMappingTable() *MappingTable {
	return &MappingTable{pairs: newPairs()}
}

// MappingFromMap builds a table from a plain map. Go maps are unordered, so
// the resulting order is unspecified.
func MappingFromMap(m map[string]string) *MappingTable {
	t := NewMappingTable()
	for k, v := range m {
		t.Set(k, v)
	}
	return t
}

// Set inserts or updates an entry. Updating keeps the original position.
func (t *MappingTable) Set(placeholder, original string) {
	if t.pairs == nil {
		t.pairs = newPairs()
	}
	t.pairs.Set(placeholder, original)
}

// Get returns the original text for a placeholder.
func (t *MappingTable) Get(placeholder string) (string, bool) {
	if t == nil || t.pairs == nil {
		return "", false
	}
	return t.pairs.Get(placeholder)
}

// Len returns the number of entries. A nil table is empty.
func (t *MappingTable) Len() int {
	if t == nil || t.pairs == nil {
		return 0
	}
	return t.pairs.Len()
}

// Entries returns a copy of the entries in insertion order.
func (t *MappingTable) Entries() []MappingEntry {
	if t == nil || t.pairs == nil {
		return nil
	}
	out := make([]MappingEntry, 0, t.pairs.Len())
	for pair := t.pairs.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, MappingEntry{Placeholder: pair.Key, Original: pair.Value})
	}
	return out
}

// Map returns the entries as a plain map.
func (t *MappingTable) Map() map[string]string {
	out := make(map[string]string, t.Len())
	for _, e := range t.Entries() {
		out[e.Placeholder] = e.Original
	}
	return out
}

// MarshalJSON encodes the table as a JSON object in insertion order.
func (t *MappingTable) MarshalJSON() ([]byte, error) {
	if t == nil || t.pairs == nil {
		return []byte("{}"), nil
	}
	return t.pairs.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object, keeping member order. Duplicate
// members keep the first position and the last value.
func (t *MappingTable) UnmarshalJSON(data []byte) error {
	pairs := newPairs()
	if !bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		if err := pairs.UnmarshalJSON(data); err != nil {
			return fmt.Errorf("failed to decode mapping table: %w", err)
		}
	}
	t.pairs = pairs
	return nil
}

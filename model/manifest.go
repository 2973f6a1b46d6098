// manifest.go - Geordnete Liste erwarteter Parameter (Name -> Form)
//
// Ein Manifest beschreibt für eine Konfiguration exakt, welche Tensoren
// ein Checkpoint liefern muss. Lader validieren dagegen, bevor ein
// Vorwärts-Pass läuft.

package model

import (
	"iter"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Entry beschreibt einen erwarteten Tensor
type Entry struct {
	Shape  []int `json:"shape"`
	Buffer bool  `json:"buffer,omitempty"`
	// Alternatives sind weitere akzeptierte Namen
	Alternatives []string `json:"alternatives,omitempty"`
}

// Manifest ist die geordnete Abbildung Name -> Entry
type Manifest struct {
	entries *orderedmap.OrderedMap[string, Entry]
}

// NewManifest erstellt ein leeres Manifest
func NewManifest() *Manifest {
	return &Manifest{entries: orderedmap.New[string, Entry]()}
}

// ManifestOf erstellt das Manifest aller Parameter in v
func ManifestOf(v any, prefix string) *Manifest {
	m := NewManifest()
	for _, p := range Params(v, prefix) {
		e := Entry{Shape: p.Tensor.Shape(), Buffer: p.Buffer}
		if len(p.Names) > 1 {
			e.Alternatives = slices.Clone(p.Names[1:])
		}
		m.Set(p.Name(), e)
	}

	return m
}

// Set fügt einen Eintrag hinzu oder überschreibt ihn
func (m *Manifest) Set(name string, e Entry) {
	m.entries.Set(name, e)
}

// Get liefert den Eintrag für name
func (m *Manifest) Get(name string) (Entry, bool) {
	return m.entries.Get(name)
}

// Len gibt die Anzahl der Einträge zurück
func (m *Manifest) Len() int {
	return m.entries.Len()
}

// Names gibt alle Namen in Einfügereihenfolge zurück
func (m *Manifest) Names() []string {
	names := make([]string, 0, m.entries.Len())
	for pair := m.entries.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}

	return names
}

// All iteriert in Einfügereihenfolge über alle Einträge
func (m *Manifest) All() iter.Seq2[string, Entry] {
	return func(yield func(string, Entry) bool) {
		for pair := m.entries.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Merge hängt alle Einträge von o an
func (m *Manifest) Merge(o *Manifest) {
	for name, e := range o.All() {
		m.Set(name, e)
	}
}

// NumElements summiert die Elemente aller gelernten Tensoren
func (m *Manifest) NumElements() int {
	var n int
	for _, e := range m.All() {
		if e.Buffer {
			continue
		}

		size := 1
		for _, d := range e.Shape {
			size *= d
		}
		n += size
	}

	return n
}

// MarshalJSON gibt das Manifest als geordnetes JSON-Objekt aus
func (m *Manifest) MarshalJSON() ([]byte, error) {
	return m.entries.MarshalJSON()
}

// UnmarshalJSON liest ein Manifest aus einem JSON-Objekt
func (m *Manifest) UnmarshalJSON(b []byte) error {
	if m.entries == nil {
		m.entries = orderedmap.New[string, Entry]()
	}

	return m.entries.UnmarshalJSON(b)
}

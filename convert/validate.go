// validate.go - Checkpoint gegen ein Manifest pruefen
// Meldet fehlende, unerwartete und falsch geformte Tensoren vor jedem Vorwaerts-Pass.

package convert

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/louis-chevallier/stylegan/model"
)

var ErrValidation = errors.New("convert: checkpoint does not match manifest")

// Mismatch beschreibt einen Tensor mit falscher Form
type Mismatch struct {
	Name string
	Want []int
	Got  []int
}

// Suggestion ordnet einem Namen den aehnlichsten Gegenpart zu
type Suggestion struct {
	Name   string
	DidYou string
}

// ValidationError sammelt alle Abweichungen eines Checkpoints
type ValidationError struct {
	Missing    []Suggestion
	Unexpected []Suggestion
	Mismatched []Mismatch
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(ErrValidation.Error())

	write := func(kind string, s Suggestion) {
		fmt.Fprintf(&sb, "\n  %s %q", kind, s.Name)
		if s.DidYou != "" {
			fmt.Fprintf(&sb, " (did you mean %q?)", s.DidYou)
		}
	}

	for _, s := range e.Missing {
		write("missing", s)
	}
	for _, s := range e.Unexpected {
		write("unexpected", s)
	}
	for _, m := range e.Mismatched {
		fmt.Fprintf(&sb, "\n  shape of %q: want %v, got %v", m.Name, m.Want, m.Got)
	}

	return sb.String()
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// empty meldet, ob keine Abweichung vorliegt
func (e *ValidationError) empty() bool {
	return len(e.Missing) == 0 && len(e.Unexpected) == 0 && len(e.Mismatched) == 0
}

// Validate prueft c gegen m. Fehlende Puffer sind erlaubt. Das Ergebnis ist
// nil oder ein *ValidationError.
func Validate(c *Checkpoint, m *model.Manifest) error {
	verr := &ValidationError{}
	known := make(map[string]bool, c.Len())

	var missing []string
	for name, e := range m.All() {
		found := ""
		for _, n := range append([]string{name}, e.Alternatives...) {
			if _, ok := c.Get(n); ok {
				found = n
				break
			}
		}

		if found == "" {
			if !e.Buffer {
				missing = append(missing, name)
			}
			continue
		}

		known[found] = true
		t, _ := c.Get(found)
		if !slices.Equal(t.Shape, e.Shape) {
			verr.Mismatched = append(verr.Mismatched, Mismatch{Name: found, Want: e.Shape, Got: t.Shape})
		}
	}

	var unexpected []string
	for _, name := range c.Names() {
		if !known[name] {
			unexpected = append(unexpected, name)
		}
	}

	for _, name := range missing {
		verr.Missing = append(verr.Missing, Suggestion{Name: name, DidYou: closest(name, unexpected)})
	}
	for _, name := range unexpected {
		verr.Unexpected = append(verr.Unexpected, Suggestion{Name: name, DidYou: closest(name, missing)})
	}

	if verr.empty() {
		return nil
	}

	return verr
}

// closest liefert den aehnlichsten Kandidaten, falls er nah genug ist
func closest(name string, candidates []string) string {
	best, score := "", math.MaxInt
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(name, c); d < score {
			best, score = c, d
		}
	}

	if score > len(name)/4+2 {
		return ""
	}

	return best
}

// dump.go - Tensor-Inhalte lesbar ausgeben (numpy-Stil)
// Grosse Tensoren werden pro Achse auf die Randelemente gekuerzt.
package ml

import (
	"strconv"
	"strings"
)

// DumpOptions configures tensor dump output format.
type DumpOptions func(*dumpOptions)

// DumpWithPrecision sets the number of decimal places to print.
func DumpWithPrecision(n int) DumpOptions {
	return func(opts *dumpOptions) {
		opts.precision = n
	}
}

// DumpWithThreshold sets the element count up to which the whole tensor is
// printed. Larger tensors only show the edge items of every axis.
func DumpWithThreshold(n int) DumpOptions {
	return func(opts *dumpOptions) {
		opts.threshold = n
	}
}

// DumpWithEdgeItems sets how many elements are kept at both ends of an axis.
func DumpWithEdgeItems(n int) DumpOptions {
	return func(opts *dumpOptions) {
		opts.edgeItems = n
	}
}

type dumpOptions struct {
	precision, threshold, edgeItems int
}

// Dump converts a tensor to a human-readable string representation.
func Dump(t Tensor, optsFuncs ...DumpOptions) string {
	opts := dumpOptions{precision: 4, threshold: 1000, edgeItems: 3}
	for _, fn := range optsFuncs {
		fn(&opts)
	}

	shape := t.Shape()
	n := 1
	for _, d := range shape {
		n *= d
	}

	p := &printer{
		data:  t.Floats(),
		shape: shape,
		edge:  opts.edgeItems,
		full:  n <= opts.threshold,
		format: func(f float32) string {
			return strconv.FormatFloat(float64(f), 'f', opts.precision, 32)
		},
	}

	if len(shape) == 0 {
		return p.format(p.data[0])
	}

	p.write(0, 0)
	return p.sb.String()
}

// printer schreibt eine Achse nach der anderen rekursiv
type printer struct {
	sb     strings.Builder
	data   []float32
	shape  []int
	edge   int
	full   bool
	format func(float32) string
}

// visible liefert die gezeigten Indizes einer Achse, -1 markiert die Auslassung
func (p *printer) visible(n int) []int {
	if p.full || n <= 2*p.edge {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	idx := make([]int, 0, 2*p.edge+1)
	for i := range p.edge {
		idx = append(idx, i)
	}
	idx = append(idx, -1)
	for i := n - p.edge; i < n; i++ {
		idx = append(idx, i)
	}
	return idx
}

func (p *printer) write(axis, offset int) {
	inner := 1
	for _, d := range p.shape[axis+1:] {
		inner *= d
	}

	leaf := axis == len(p.shape)-1
	sep := ", "
	if !leaf {
		sep = "," + strings.Repeat("\n", len(p.shape)-axis-1) + strings.Repeat(" ", axis+1)
	}

	p.sb.WriteByte('[')
	for j, i := range p.visible(p.shape[axis]) {
		if j > 0 {
			p.sb.WriteString(sep)
		}

		switch {
		case i < 0:
			p.sb.WriteString("...")
		case leaf:
			text := p.format(p.data[offset+i])
			if !strings.HasPrefix(text, "-") {
				p.sb.WriteByte(' ')
			}
			p.sb.WriteString(text)
		default:
			p.write(axis+1, offset+i*inner)
		}
	}
	p.sb.WriteByte(']')
}

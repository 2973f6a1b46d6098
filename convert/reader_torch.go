// reader_torch.go - PyTorch state_dict (.pt) ueber gopickle lesen
// Unterstuetzt Float-, Half-, BFloat16- und Double-Storages mit Offset und Strides.

package convert

import (
	"fmt"
	"log/slog"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
)

// ReadTorch laedt ein mit torch.save gespeichertes state_dict
func ReadTorch(path string) (*Checkpoint, error) {
	v, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("convert: load %s: %w", path, err)
	}

	c := NewCheckpoint()
	add := func(key, value any) error {
		name, ok := key.(string)
		if !ok {
			return fmt.Errorf("%w: key %v is %T", ErrCorrupt, key, key)
		}

		pt, ok := value.(*pytorch.Tensor)
		if !ok {
			slog.Debug("skipping non-tensor entry", "name", name, "type", fmt.Sprintf("%T", value))
			return nil
		}

		t, err := torchTensor(pt)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}

		c.Set(name, t)
		return nil
	}

	switch d := v.(type) {
	case *types.OrderedDict:
		for e := d.List.Front(); e != nil; e = e.Next() {
			entry := e.Value.(*types.OrderedDictEntry)
			if err := add(entry.Key, entry.Value); err != nil {
				return nil, err
			}
		}
	case *types.Dict:
		for _, k := range d.Keys() {
			value, _ := d.Get(k)
			if err := add(k, value); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: %s holds %T, want a state dict", ErrUnsupportedFormat, path, v)
	}

	slog.Debug("torch checkpoint read", "path", path, "tensors", c.Len())
	return c, nil
}

// torchTensor kopiert die (moeglicherweise gestridete) Sicht in einen dichten Tensor
func torchTensor(pt *pytorch.Tensor) (Tensor, error) {
	var (
		src   []float32
		dtype string
	)

	switch s := pt.Source.(type) {
	case *pytorch.FloatStorage:
		src, dtype = s.Data, "F32"
	case *pytorch.HalfStorage:
		src, dtype = s.Data, "F16"
	case *pytorch.BFloat16Storage:
		src, dtype = s.Data, "BF16"
	case *pytorch.DoubleStorage:
		src = make([]float32, len(s.Data))
		for i, f := range s.Data {
			src[i] = float32(f)
		}
		dtype = "F64"
	default:
		return Tensor{}, fmt.Errorf("%w: storage %T", ErrUnsupportedDType, s)
	}

	shape := append([]int(nil), pt.Size...)
	data, err := gatherStrided(src, pt.StorageOffset, shape, pt.Stride)
	if err != nil {
		return Tensor{}, err
	}

	return Tensor{Shape: shape, Data: data, DType: dtype}, nil
}

// gatherStrided liest shape Elemente ab offset mit den gegebenen Strides
func gatherStrided(src []float32, offset int, shape, strides []int) ([]float32, error) {
	n := numel(shape)
	if len(strides) != len(shape) {
		return nil, fmt.Errorf("%w: %d strides for rank %d", ErrCorrupt, len(strides), len(shape))
	}

	contiguous := true
	for i, acc := len(shape)-1, 1; i >= 0; i-- {
		if shape[i] != 1 && strides[i] != acc {
			contiguous = false
			break
		}
		acc *= shape[i]
	}

	if contiguous {
		if offset < 0 || offset+n > len(src) {
			return nil, fmt.Errorf("%w: view [%d, %d) outside storage of %d", ErrCorrupt, offset, offset+n, len(src))
		}
		return append([]float32(nil), src[offset:offset+n]...), nil
	}

	out := make([]float32, n)
	idx := make([]int, len(shape))
	for i := range out {
		pos := offset
		for d, v := range idx {
			pos += v * strides[d]
		}
		if pos < 0 || pos >= len(src) {
			return nil, fmt.Errorf("%w: element %d outside storage", ErrCorrupt, pos)
		}
		out[i] = src[pos]

		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}

	return out, nil
}

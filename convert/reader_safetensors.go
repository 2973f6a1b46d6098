// reader_safetensors.go - safetensors lesen (F32, F16, BF16, F64)
// Tensoren werden in Offset-Reihenfolge abgelegt und parallel dekodiert.

package convert

import (
	"cmp"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"
	"slices"

	bfloat16 "github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
	"golang.org/x/sync/errgroup"
)

// maxHeaderSize begrenzt den JSON-Header
const maxHeaderSize = 100 << 20

// safetensorsInfo beschreibt einen Header-Eintrag
type safetensorsInfo struct {
	DType       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// dtypeSize gibt die Bytes pro Element zurueck
func dtypeSize(dtype string) (int, error) {
	switch dtype {
	case "F32":
		return 4, nil
	case "F16", "BF16":
		return 2, nil
	case "F64":
		return 8, nil
	default:
		return 0, fmt.Errorf("%w %q", ErrUnsupportedDType, dtype)
	}
}

// ReadSafetensors liest eine safetensors-Datei vollstaendig
func ReadSafetensors(path string) (*Checkpoint, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c, err := ParseSafetensors(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	slog.Debug("safetensors checkpoint read", "path", path, "tensors", c.Len())
	return c, nil
}

// ParseSafetensors dekodiert den Inhalt einer safetensors-Datei
func ParseSafetensors(b []byte) (*Checkpoint, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(b))
	}

	n := binary.LittleEndian.Uint64(b[:8])
	if n > maxHeaderSize || 8+n > uint64(len(b)) {
		return nil, fmt.Errorf("%w: header length %d exceeds file size %d", ErrCorrupt, n, len(b))
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b[8:8+n], &raw); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}

	type entry struct {
		name string
		info safetensorsInfo
	}

	entries := make([]entry, 0, len(raw))
	for name, msg := range raw {
		if name == "__metadata__" {
			continue
		}

		var info safetensorsInfo
		if err := json.Unmarshal(msg, &info); err != nil {
			return nil, fmt.Errorf("%w: tensor %s: %v", ErrCorrupt, name, err)
		}
		entries = append(entries, entry{name, info})
	}

	slices.SortFunc(entries, func(a, b entry) int {
		return cmp.Or(cmp.Compare(a.info.DataOffsets[0], b.info.DataOffsets[0]), cmp.Compare(a.name, b.name))
	})

	data := b[8+n:]
	tensors := make([]Tensor, len(entries))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, e := range entries {
		g.Go(func() error {
			t, err := decodeSafetensor(data, e.info)
			if err != nil {
				return fmt.Errorf("%s: %w", e.name, err)
			}
			tensors[i] = t
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := NewCheckpoint()
	for i, e := range entries {
		c.Set(e.name, tensors[i])
	}

	return c, nil
}

func decodeSafetensor(data []byte, info safetensorsInfo) (Tensor, error) {
	size, err := dtypeSize(info.DType)
	if err != nil {
		return Tensor{}, err
	}

	begin, end := info.DataOffsets[0], info.DataOffsets[1]
	n := numel(info.Shape)
	if begin < 0 || end > len(data) || end-begin != n*size {
		return Tensor{}, fmt.Errorf("%w: offsets [%d, %d) for %d x %s", ErrCorrupt, begin, end, n, info.DType)
	}

	raw := data[begin:end]
	out := make([]float32, n)

	switch info.DType {
	case "F32":
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
		}
	case "F16":
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[2*i:])).Float32()
		}
	case "BF16":
		out = bfloat16.DecodeFloat32(raw)
	case "F64":
		for i := range out {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:])))
		}
	}

	return Tensor{Shape: append([]int{}, info.Shape...), Data: out, DType: info.DType}, nil
}

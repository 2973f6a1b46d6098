// writer_safetensors.go - Checkpoint als safetensors (F32 oder F16) schreiben

package convert

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/x448/float16"
)

// WriteSafetensors schreibt c nach w; dtype ist "F32" oder "F16"
func WriteSafetensors(w io.Writer, c *Checkpoint, dtype string, metadata map[string]string) error {
	size, err := dtypeSize(dtype)
	if err != nil {
		return err
	}
	if dtype != "F32" && dtype != "F16" {
		return fmt.Errorf("%w %q for writing", ErrUnsupportedDType, dtype)
	}

	header := orderedmap.New[string, any]()
	if len(metadata) > 0 {
		header.Set("__metadata__", metadata)
	}

	var offset int
	for name, t := range c.All() {
		n := len(t.Data) * size
		header.Set(name, safetensorsInfo{DType: dtype, Shape: shapeOrEmpty(t.Shape), DataOffsets: [2]int{offset, offset + n}})
		offset += n
	}

	h, err := json.Marshal(header)
	if err != nil {
		return err
	}

	// Header auf 8 Bytes ausrichten
	if pad := (8 - len(h)%8) % 8; pad > 0 {
		h = append(h, bytes.Repeat([]byte(" "), pad)...)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(h))); err != nil {
		return err
	}
	if _, err := w.Write(h); err != nil {
		return err
	}

	for _, t := range c.All() {
		buf := make([]byte, len(t.Data)*size)
		for i, f := range t.Data {
			if dtype == "F16" {
				binary.LittleEndian.PutUint16(buf[2*i:], float16.Fromfloat32(f).Bits())
			} else {
				binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
			}
		}

		if _, err := w.Write(buf); err != nil {
			return err
		}
	}

	return nil
}

func shapeOrEmpty(shape []int) []int {
	if shape == nil {
		return []int{}
	}

	return shape
}

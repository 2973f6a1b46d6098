package convert

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/louis-chevallier/stylegan/model"
)

func sampleCheckpoint() *Checkpoint {
	c := NewCheckpoint()
	c.Set("b.weight", Tensor{Shape: []int{2, 3}, Data: []float32{1, -2, 0.5, 0.25, 4, -8}})
	c.Set("a.bias", Tensor{Shape: []int{2}, Data: []float32{0, 1.5}})
	c.Set("scalar", Tensor{Shape: []int{}, Data: []float32{3}})
	return c
}

func writeFile(t *testing.T, name string, c *Checkpoint, dtype string) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, WriteSafetensors(&buf, c, dtype, map[string]string{"format": "pt"}))

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestSafetensorsRoundtrip(t *testing.T) {
	for _, dtype := range []string{"F32", "F16"} {
		t.Run(dtype, func(t *testing.T) {
			want := sampleCheckpoint()
			got, err := Open(writeFile(t, "model.safetensors", want, dtype))
			require.NoError(t, err)

			// Reihenfolge der Datei bleibt erhalten
			assert.Equal(t, want.Names(), got.Names())

			for name, w := range want.All() {
				g, ok := got.Get(name)
				require.True(t, ok, name)
				assert.Equal(t, dtype, g.DType)
				if diff := cmp.Diff(w.Shape, g.Shape); diff != "" {
					t.Errorf("%s: Form falsch (-want +got):\n%s", name, diff)
				}
				if diff := cmp.Diff(w.Data, g.Data); diff != "" {
					t.Errorf("%s: Daten falsch (-want +got):\n%s", name, diff)
				}
			}
		})
	}
}

func TestSafetensorsHeaderAlignment(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSafetensors(&buf, sampleCheckpoint(), "F32", nil))

	n := binary.LittleEndian.Uint64(buf.Bytes()[:8])
	assert.Zero(t, n%8, "Header nicht ausgerichtet")
	assert.Equal(t, 8+int(n)+4*9, buf.Len())
}

// rawSafetensors baut eine Datei mit einem einzelnen Tensor aus Rohbytes
func rawSafetensors(t *testing.T, dtype string, shape []int, data []byte) []byte {
	t.Helper()

	header, err := json.Marshal(map[string]any{
		"__metadata__": map[string]string{"k": "v"},
		"x":            safetensorsInfo{DType: dtype, Shape: shape, DataOffsets: [2]int{0, len(data)}},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(header))))
	buf.Write(header)
	buf.Write(data)
	return buf.Bytes()
}

func TestSafetensorsDTypes(t *testing.T) {
	f64 := make([]byte, 16)
	binary.LittleEndian.PutUint64(f64, math.Float64bits(0.5))
	binary.LittleEndian.PutUint64(f64[8:], math.Float64bits(-3))

	cases := []struct {
		dtype string
		data  []byte
		want  []float32
	}{
		// 1.0 = 0x3f80, -2.0 = 0xc000
		{"BF16", []byte{0x80, 0x3f, 0x00, 0xc0}, []float32{1, -2}},
		// 1.0 = 0x3c00, 0.5 = 0x3800
		{"F16", []byte{0x00, 0x3c, 0x00, 0x38}, []float32{1, 0.5}},
		{"F64", f64, []float32{0.5, -3}},
	}

	for _, tt := range cases {
		t.Run(tt.dtype, func(t *testing.T) {
			c, err := ParseSafetensors(rawSafetensors(t, tt.dtype, []int{2}, tt.data))
			require.NoError(t, err)
			require.Equal(t, []string{"x"}, c.Names())

			x, _ := c.Get("x")
			if diff := cmp.Diff(tt.want, x.Data); diff != "" {
				t.Errorf("Daten falsch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSafetensorsErrors(t *testing.T) {
	cases := []struct {
		name string
		b    []byte
		want error
	}{
		{"short", []byte{1, 2, 3}, ErrCorrupt},
		{"header too long", binary.LittleEndian.AppendUint64(nil, 1000), ErrCorrupt},
		{"dtype", rawSafetensors(t, "I8", []int{2}, []byte{1, 2}), ErrUnsupportedDType},
		{"offsets", rawSafetensors(t, "F32", []int{2}, []byte{0, 0, 0, 0}), ErrCorrupt},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSafetensors(tt.b)
			if !errors.Is(err, tt.want) {
				t.Errorf("Fehler %v, erwartet %v", err, tt.want)
			}
		})
	}

	_, err := Open(filepath.Join(t.TempDir(), "model.ckpt"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestTorchTensor(t *testing.T) {
	t.Run("contiguous with offset", func(t *testing.T) {
		pt := &pytorch.Tensor{
			Source:        &pytorch.FloatStorage{Data: []float32{9, 9, 1, 2, 3, 4, 5, 6}},
			StorageOffset: 2,
			Size:          []int{2, 3},
			Stride:        []int{3, 1},
		}

		got, err := torchTensor(pt)
		require.NoError(t, err)
		assert.Equal(t, "F32", got.DType)
		assert.Equal(t, []int{2, 3}, got.Shape)
		assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, got.Data)
	})

	t.Run("transposed", func(t *testing.T) {
		// Sicht [3, 2] auf einen [2, 3] Speicher
		pt := &pytorch.Tensor{
			Source: &pytorch.DoubleStorage{Data: []float64{1, 2, 3, 4, 5, 6}},
			Size:   []int{3, 2},
			Stride: []int{1, 3},
		}

		got, err := torchTensor(pt)
		require.NoError(t, err)
		assert.Equal(t, "F64", got.DType)
		assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, got.Data)
	})

	t.Run("half", func(t *testing.T) {
		pt := &pytorch.Tensor{
			Source: &pytorch.HalfStorage{Data: []float32{0.5}},
			Size:   []int{1, 1, 1, 1},
			Stride: []int{7, 7, 7, 1},
		}

		got, err := torchTensor(pt)
		require.NoError(t, err)
		assert.Equal(t, []float32{0.5}, got.Data)
	})

	t.Run("out of range", func(t *testing.T) {
		pt := &pytorch.Tensor{
			Source:        &pytorch.FloatStorage{Data: []float32{1, 2}},
			StorageOffset: 1,
			Size:          []int{2},
			Stride:        []int{1},
		}

		_, err := torchTensor(pt)
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func testManifest() *model.Manifest {
	m := model.NewManifest()
	m.Set("g.dense0.weight", model.Entry{Shape: []int{2, 3}})
	m.Set("g.dense0.bias", model.Entry{Shape: []int{2}, Alternatives: []string{"g.dense0.b"}})
	m.Set("g.blur.kernel", model.Entry{Shape: []int{1, 1, 3, 3}, Buffer: true})
	m.Set("g.torgb.weight", model.Entry{Shape: []int{3, 2, 1, 1}})
	return m
}

func TestValidate(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		c := NewCheckpoint()
		c.Set("g.dense0.weight", Tensor{Shape: []int{2, 3}})
		c.Set("g.dense0.b", Tensor{Shape: []int{2}})
		c.Set("g.torgb.weight", Tensor{Shape: []int{3, 2, 1, 1}})

		assert.NoError(t, Validate(c, testManifest()))
	})

	t.Run("report", func(t *testing.T) {
		c := NewCheckpoint()
		c.Set("g.dense0.weight", Tensor{Shape: []int{3, 2}})
		c.Set("g.dense0.bias", Tensor{Shape: []int{2}})
		c.Set("g.to_rgb.weight", Tensor{Shape: []int{3, 2, 1, 1}})
		c.Set("g.something.else", Tensor{Shape: []int{1}})

		err := Validate(c, testManifest())
		require.ErrorIs(t, err, ErrValidation)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)

		want := &ValidationError{
			Missing: []Suggestion{{Name: "g.torgb.weight", DidYou: "g.to_rgb.weight"}},
			Unexpected: []Suggestion{
				{Name: "g.to_rgb.weight", DidYou: "g.torgb.weight"},
				{Name: "g.something.else"},
			},
			Mismatched: []Mismatch{{Name: "g.dense0.weight", Want: []int{2, 3}, Got: []int{3, 2}}},
		}
		if diff := cmp.Diff(want, verr); diff != "" {
			t.Errorf("Bericht falsch (-want +got):\n%s", diff)
		}

		assert.Contains(t, err.Error(), `did you mean "g.torgb.weight"?`)
	})
}

func TestAverageLatent(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "avg.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte("[0.5, -1, 2]"), 0o644))

	avg, err := ReadAverageLatent(jsonPath, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1, 2}, avg)

	_, err = ReadAverageLatent(jsonPath, 4)
	assert.ErrorIs(t, err, ErrCorrupt)

	c := sampleCheckpoint()
	c.Set("truncation.avg_latent", Tensor{Shape: []int{3}, Data: []float32{1, 2, 3}})
	avg, err = ReadAverageLatent(writeFile(t, "avg.safetensors", c, "F32"), 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, avg)

	_, err = FindAverageLatent(sampleCheckpoint())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestCheckpointPrefix(t *testing.T) {
	c := sampleCheckpoint().WithPrefix("g_mapping.")
	assert.Equal(t, []string{"g_mapping.b.weight", "g_mapping.a.bias", "g_mapping.scalar"}, c.Names())

	shape, data, ok := c.Tensor("g_mapping.a.bias")
	require.True(t, ok)
	assert.Equal(t, []int{2}, shape)
	assert.Equal(t, []float32{0, 1.5}, data)
}

package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/louis-chevallier/stylegan/convert"
	"github.com/louis-chevallier/stylegan/ml"
	"github.com/louis-chevallier/stylegan/ml/backend/cpu"
	"github.com/louis-chevallier/stylegan/model/models/stylegan"
)

const smallJSON = `{"latent_size":16,"dlatent_size":16,"mapping_fmaps":16,"resolution":8,"fmap_base":64,"fmap_max":8,"use_noise":false}`

func smallConfig(t *testing.T) stylegan.Config {
	t.Helper()

	cfg, err := stylegan.ParseConfig([]byte(smallJSON), stylegan.DefaultConfig())
	require.NoError(t, err)
	return cfg
}

func newRunner(t *testing.T, cfg stylegan.Config, avg []float32, p Params) *Runner {
	t.Helper()

	ctx := cpu.NewContext(2)
	opts := []stylegan.Option{stylegan.WithSeed(3)}
	if avg != nil {
		opts = append(opts, stylegan.WithAverageLatent(avg))
	}

	g, err := stylegan.New(ctx, cfg, opts...)
	require.NoError(t, err)
	return New(ctx, g, avg, p)
}

func ptr[T any](v T) *T { return &v }

func TestGenerateSeeds(t *testing.T) {
	r := newRunner(t, smallConfig(t), nil, Params{})

	res, err := r.Generate(t.Context(), GenerateRequest{Sampling: Sampling{Seed: 10, Batch: 3}})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 8, 8}, res.Images.Shape())
	assert.Equal(t, []uint64{10, 11, 12}, res.Seeds)
	// R=8: L = 2*log2(8) - 2 = 4 Style-Slots
	assert.Equal(t, []int{3, 4, 16}, res.Dlatents.Shape())
	assert.Equal(t, 4, r.Generator().Synthesis.NumLayers())

	// Sample mit Seed 11 haengt nicht vom Batch ab
	single, err := r.Generate(t.Context(), GenerateRequest{Sampling: Sampling{Seed: 11}})
	require.NoError(t, err)
	assert.Equal(t, []uint64{11}, single.Seeds)

	n := 3 * 8 * 8
	if diff := cmp.Diff(res.Images.Floats()[n:2*n], single.Images.Floats(), cmpopts.EquateApprox(0, 1e-5)); diff != "" {
		t.Errorf("Sample 11 unterscheidet sich (-batch +einzeln):\n%s", diff)
	}
}

func TestGenerateLatents(t *testing.T) {
	r := newRunner(t, smallConfig(t), nil, Params{})

	z := make([]float32, 16)
	for i := range z {
		z[i] = float32(i%5) - 2
	}

	res, err := r.Generate(t.Context(), GenerateRequest{Sampling: Sampling{Latents: [][]float32{z, z}}})
	require.NoError(t, err)
	assert.Empty(t, res.Seeds)

	n := 3 * 8 * 8
	out := res.Images.Floats()
	assert.Equal(t, out[:n], out[n:], "gleiche Latents muessen gleiche Bilder liefern")

	_, err = r.Generate(t.Context(), GenerateRequest{Sampling: Sampling{Latents: [][]float32{z[:4]}}})
	require.ErrorIs(t, err, stylegan.ErrLatentShape)
}

func TestBatchLimits(t *testing.T) {
	r := newRunner(t, smallConfig(t), nil, Params{MaxBatch: 2})
	assert.Equal(t, 2, r.MaxBatch())

	_, err := r.Generate(t.Context(), GenerateRequest{Sampling: Sampling{Batch: 3}})
	require.ErrorIs(t, err, ErrBatchTooLarge)

	_, err = r.Generate(t.Context(), GenerateRequest{Sampling: Sampling{Batch: -1}})
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = r.Interpolate(t.Context(), InterpolateRequest{Frames: 3})
	require.ErrorIs(t, err, ErrBatchTooLarge)

	_, err = r.Interpolate(t.Context(), InterpolateRequest{Frames: 1})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestTruncationOverride(t *testing.T) {
	cfg := smallConfig(t)
	avg := make([]float32, cfg.DlatentSize)
	for i := range avg {
		avg[i] = 0.25
	}

	r := newRunner(t, cfg, avg, Params{})

	// psi 0 bis cutoff: alle Slots gleich avg
	res, err := r.Map(t.Context(), MapRequest{
		Sampling:   Sampling{Seed: 1, Batch: 2},
		Truncation: Truncation{Psi: ptr(0.0), Cutoff: ptr(r.Generator().Synthesis.NumLayers())},
	})
	require.NoError(t, err)
	for i, v := range res.Dlatents.Floats() {
		if v != 0.25 {
			t.Fatalf("Wert %d = %v, erwartet 0.25", i, v)
		}
	}

	// Override aendert den Generator nicht
	assert.InDelta(t, cfg.TruncationPsi, r.Generator().Truncation.Threshold, 0)

	_, err = r.Map(t.Context(), MapRequest{Truncation: Truncation{Psi: ptr(1.5)}})
	require.ErrorIs(t, err, ErrInvalidRequest)

	noAvg := newRunner(t, cfg, nil, Params{})
	_, err = noAvg.Map(t.Context(), MapRequest{Truncation: Truncation{Psi: ptr(0.5)}})
	require.ErrorIs(t, err, ErrNoAverageLatent)
	assert.False(t, noAvg.HasAverageLatent())
}

func TestStyleMixing(t *testing.T) {
	r := newRunner(t, smallConfig(t), nil, Params{})
	l := r.Generator().Synthesis.NumLayers()

	a, err := r.Generate(t.Context(), GenerateRequest{Sampling: Sampling{Seed: 1, Batch: 2}})
	require.NoError(t, err)
	b, err := r.Generate(t.Context(), GenerateRequest{Sampling: Sampling{Seed: 7, Batch: 2}})
	require.NoError(t, err)

	tests := []struct {
		name      string
		crossover int
		want      ml.Tensor
	}{
		{"alles aus A", l, a.Images},
		{"alles aus B", 0, b.Images},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Generate(t.Context(), GenerateRequest{
				Sampling: Sampling{Seed: 1, Batch: 2},
				Mix:      &Mixing{Seed: 7, Crossover: tt.crossover},
			})
			require.NoError(t, err)
			assert.Equal(t, []uint64{1, 2}, res.Seeds)
			if diff := cmp.Diff(tt.want.Floats(), res.Images.Floats(), cmpopts.EquateApprox(0, 1e-6)); diff != "" {
				t.Errorf("Bild unterscheidet sich (-erwartet +bekommen):\n%s", diff)
			}
		})
	}

	mixed, err := r.Generate(t.Context(), GenerateRequest{
		Sampling: Sampling{Seed: 1, Batch: 2},
		Mix:      &Mixing{Seed: 7, Crossover: 2},
	})
	require.NoError(t, err)

	// Slots < crossover aus A, Rest aus B
	d := r.Generator().Config().DlatentSize
	wa, wb, wm := a.Dlatents.Floats(), b.Dlatents.Floats(), mixed.Dlatents.Floats()
	for slot := range l {
		src := wb
		if slot < 2 {
			src = wa
		}
		assert.Equal(t, src[slot*d:(slot+1)*d], wm[slot*d:(slot+1)*d], "Slot %d", slot)
	}

	_, err = r.Generate(t.Context(), GenerateRequest{Mix: &Mixing{Crossover: l + 1}})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSynthesizeMatchesGenerate(t *testing.T) {
	r := newRunner(t, smallConfig(t), nil, Params{})

	gen, err := r.Generate(t.Context(), GenerateRequest{Sampling: Sampling{Seed: 5, Batch: 2}})
	require.NoError(t, err)

	w := toNested(gen.Dlatents)
	syn, err := r.Synthesize(t.Context(), SynthesizeRequest{Dlatents: w})
	require.NoError(t, err)
	assert.Equal(t, gen.Images.Floats(), syn.Images.Floats())

	_, err = r.Synthesize(t.Context(), SynthesizeRequest{Dlatents: [][][]float32{w[0][:3]}})
	require.ErrorIs(t, err, stylegan.ErrStyleSlots)

	_, err = r.Synthesize(t.Context(), SynthesizeRequest{})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func toNested(t ml.Tensor) [][][]float32 {
	n, l, d := t.Dim(0), t.Dim(1), t.Dim(2)
	data := t.Floats()

	out := make([][][]float32, n)
	for i := range out {
		out[i] = make([][]float32, l)
		for j := range out[i] {
			off := (i*l + j) * d
			out[i][j] = data[off : off+d]
		}
	}
	return out
}

func TestNoiseModes(t *testing.T) {
	cfg := smallConfig(t)
	cfg.UseNoise = true
	r := newRunner(t, cfg, nil, Params{})

	// Rausch-Gewichte auf 1, sonst hat Rauschen keinen Einfluss
	for _, p := range r.Generator().Params() {
		if strings.HasSuffix(p.Name(), "noise.weight") {
			data := make([]float32, p.Tensor.Dim(0))
			for i := range data {
				data[i] = 1
			}
			p.Tensor.FromFloats(data)
		}
	}

	gen := func(n Noise) []float32 {
		t.Helper()
		res, err := r.Generate(t.Context(), GenerateRequest{Sampling: Sampling{Seed: 2}, Noise: n})
		require.NoError(t, err)
		return res.Images.Floats()
	}

	zero := gen(Noise{Mode: NoiseZero})
	assert.Equal(t, zero, gen(Noise{Mode: NoiseZero}))
	assert.Equal(t, gen(Noise{Mode: NoiseFixed, Seed: 9}), gen(Noise{Mode: NoiseFixed, Seed: 9}))
	assert.Equal(t, gen(Noise{Mode: NoiseRandom, Seed: 9}), gen(Noise{Mode: NoiseRandom, Seed: 9}))
	assert.NotEqual(t, zero, gen(Noise{Mode: NoiseRandom, Seed: 9}))

	// zufaelliges Rauschen eines Samples haengt nicht von der Batch-Groesse ab
	batch, err := r.Generate(t.Context(), GenerateRequest{Sampling: Sampling{Seed: 10, Batch: 3}, Noise: Noise{Mode: NoiseRandom}})
	require.NoError(t, err)
	single, err := r.Generate(t.Context(), GenerateRequest{Sampling: Sampling{Seed: 11}, Noise: Noise{Mode: NoiseRandom}})
	require.NoError(t, err)
	n := 3 * 8 * 8
	if diff := cmp.Diff(batch.Images.Floats()[n:2*n], single.Images.Floats(), cmpopts.EquateApprox(0, 1e-5)); diff != "" {
		t.Errorf("Sample 11 unterscheidet sich (-batch +einzeln):\n%s", diff)
	}

	_, err = r.Generate(t.Context(), GenerateRequest{Noise: Noise{Mode: "blau"}})
	require.ErrorIs(t, err, ErrUnknownNoiseMode)

	_, err = ParseNoiseMode("fixed")
	require.NoError(t, err)
	_, err = ParseNoiseMode("laut")
	require.ErrorIs(t, err, ErrUnknownNoiseMode)
}

func TestInterpolate(t *testing.T) {
	r := newRunner(t, smallConfig(t), nil, Params{})

	for _, space := range []Space{SpaceZ, SpaceW} {
		t.Run(string(space), func(t *testing.T) {
			frames, err := r.Interpolate(t.Context(), InterpolateRequest{From: 4, To: 8, Frames: 4, Space: space})
			require.NoError(t, err)
			require.Len(t, frames, 4)

			first, err := r.Generate(t.Context(), GenerateRequest{Sampling: Sampling{Seed: 4}})
			require.NoError(t, err)
			last, err := r.Generate(t.Context(), GenerateRequest{Sampling: Sampling{Seed: 8}})
			require.NoError(t, err)

			assert.Equal(t, first.Images.Floats(), frames[0].Floats())
			assert.Equal(t, last.Images.Floats(), frames[3].Floats())
		})
	}

	_, err := r.Interpolate(t.Context(), InterpolateRequest{Frames: 2, Space: "x"})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestParallelLimit(t *testing.T) {
	r := newRunner(t, smallConfig(t), nil, Params{NumParallel: 1})

	release, err := r.acquire(t.Context())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err = r.Generate(ctx, GenerateRequest{})
	require.ErrorIs(t, err, context.Canceled)
	release()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = r.Generate(t.Context(), GenerateRequest{Sampling: Sampling{Seed: uint64(i)}})
		}()
	}
	wg.Wait()
	require.NoError(t, errors.Join(errs...))
}

func TestLoadCheckpoint(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(smallJSON), 0o644))

	src := newRunner(t, smallConfig(t), nil, Params{})
	ckpt := convert.FromParams(src.Generator().Params())

	avg := make([]float32, 16)
	for i := range avg {
		avg[i] = float32(i) / 16
	}
	ckpt.Set(TruncationPrefix+convert.AvgLatentSuffix, convert.Tensor{Shape: []int{16}, Data: avg, DType: "F32"})

	ckptPath := filepath.Join(dir, "g.safetensors")
	f, err := os.Create(ckptPath)
	require.NoError(t, err)
	require.NoError(t, convert.WriteSafetensors(f, ckpt, "F32", nil))
	require.NoError(t, f.Close())

	r, err := Load(Params{Preset: "ffhq-1024", ConfigPath: cfgPath, Checkpoint: ckptPath, NumThreads: 1, Seed: 99})
	require.NoError(t, err)
	defer r.Close()

	assert.True(t, r.HasAverageLatent())
	assert.NotNil(t, r.Generator().Truncation)
	assert.Equal(t, "ffhq-1024", r.Preset())

	// gleiche Gewichte, andere Init-Seeds: Mapping-Ausgabe ohne Truncation identisch
	want, err := src.Map(t.Context(), MapRequest{Sampling: Sampling{Seed: 1}})
	require.NoError(t, err)

	r.Generator().Truncation = nil
	got, err := r.Map(t.Context(), MapRequest{Sampling: Sampling{Seed: 1}})
	require.NoError(t, err)
	if diff := cmp.Diff(want.Dlatents.Floats(), got.Dlatents.Floats(), cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("Mapping nach Load weicht ab (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(smallJSON), 0o644))

	_, err := Load(Params{Preset: "gibtsnicht"})
	require.ErrorIs(t, err, stylegan.ErrInvalidConfig)

	// Checkpoint mit fehlendem Tensor
	src := newRunner(t, smallConfig(t), nil, Params{})
	ckpt := convert.FromParams(src.Generator().Params()[1:])

	ckptPath := filepath.Join(dir, "broken.safetensors")
	f, err := os.Create(ckptPath)
	require.NoError(t, err)
	require.NoError(t, convert.WriteSafetensors(f, ckpt, "F32", nil))
	require.NoError(t, f.Close())

	_, err = Load(Params{Preset: "ffhq-1024", ConfigPath: cfgPath, Checkpoint: ckptPath, NumThreads: 1})
	require.ErrorIs(t, err, convert.ErrValidation)

	var verr *convert.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Missing, 1)

	_, err = Load(Params{Preset: "ffhq-1024", ConfigPath: cfgPath, AvgLatent: filepath.Join(dir, "fehlt.json"), NumThreads: 1})
	require.ErrorIs(t, err, os.ErrNotExist)
}

package nn_test

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/louis-chevallier/stylegan/ml/backend/cpu"
	"github.com/louis-chevallier/stylegan/ml/nn"
)

func TestPixelNormUnitMeanSquare(t *testing.T) {
	ctx := cpu.NewContext(2)
	r := rand.New(rand.NewPCG(1, 1))

	const b, d = 3, 64
	data := make([]float32, b*d)
	for i := range data {
		data[i] = float32(r.NormFloat64() * 5)
	}

	out := nn.NewPixelNorm().Forward(ctx, ctx.FromFloats(data, b, d))
	ms := out.Sqr(ctx).Mean(ctx, 1).Floats()
	for i, v := range ms {
		if math.Abs(float64(v)-1) > 1e-5 {
			t.Errorf("Sample %d: mittleres Quadrat %v, erwartet 1", i, v)
		}
	}
}

func TestPixelNormFeatureMaps(t *testing.T) {
	ctx := cpu.NewContext(1)
	x := ctx.FromFloats([]float32{3, 6, 4, 8}, 1, 2, 1, 2)

	// Kanalachse ist Achse 1: (3,4) und (6,8)
	got := nn.NewPixelNorm().Forward(ctx, x).Floats()
	want := []float32{3 / 3.5355339, 6 / 7.0710678, 4 / 3.5355339, 8 / 7.0710678}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-5)); diff != "" {
		t.Errorf("PixelNorm falsch (-want +got):\n%s", diff)
	}
}

func TestInstanceNorm(t *testing.T) {
	ctx := cpu.NewContext(1)
	r := rand.New(rand.NewPCG(2, 2))

	data := make([]float32, 2*3*4*4)
	for i := range data {
		data[i] = float32(r.NormFloat64()*3 + 7)
	}

	out := nn.NewInstanceNorm().Forward(ctx, ctx.FromFloats(data, 2, 3, 4, 4))
	if diff := cmp.Diff([]int{2, 3, 4, 4}, out.Shape()); diff != "" {
		t.Fatalf("Form falsch (-want +got):\n%s", diff)
	}

	flat := out.Reshape(ctx, 2, 3, 16)
	for i, m := range flat.Mean(ctx, 2).Floats() {
		if math.Abs(float64(m)) > 1e-5 {
			t.Errorf("Kanal %d: Mittelwert %v, erwartet 0", i, m)
		}
	}
	for i, v := range flat.Variance(ctx, 2).Floats() {
		if math.Abs(float64(v)-1) > 1e-3 {
			t.Errorf("Kanal %d: Varianz %v, erwartet 1", i, v)
		}
	}
}

func TestBlurConstant(t *testing.T) {
	ctx := cpu.NewContext(2)
	blur, err := nn.NewBlur(ctx, nn.DefaultBlurTaps, true, false)
	if err != nil {
		t.Fatal(err)
	}

	const c, h, w = 2, 5, 5
	data := make([]float32, c*h*w)
	for i := range data {
		data[i] = 2
	}

	out := blur.Forward(ctx, ctx.FromFloats(data, 1, c, h, w)).Floats()

	// Null-Padding: Innen bleibt der Wert erhalten, Raender werden mit 3/4 pro Achse gedaempft
	for ch := range c {
		for y := range h {
			for x := range w {
				want := float32(2)
				if y == 0 || y == h-1 {
					want *= 0.75
				}
				if x == 0 || x == w-1 {
					want *= 0.75
				}

				got := out[(ch*h+y)*w+x]
				if math.Abs(float64(got-want)) > 1e-6 {
					t.Errorf("Pixel (%d,%d,%d): %v, erwartet %v", ch, y, x, got, want)
				}
			}
		}
	}
}

func TestBlurKernel(t *testing.T) {
	ctx := cpu.NewContext(1)

	cases := []struct {
		name      string
		taps      []float32
		normalize bool
		flip      bool
		want      []float32
	}{
		{"normalized", []float32{1, 2, 1}, true, false, []float32{1, 2, 1, 2, 4, 2, 1, 2, 1}},
		{"raw", []float32{1, 2, 1}, false, false, []float32{1, 2, 1, 2, 4, 2, 1, 2, 1}},
		{"flipped", []float32{1, 3, 0}, false, true, []float32{0, 0, 0, 0, 9, 3, 0, 3, 1}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			blur, err := nn.NewBlur(ctx, tt.taps, tt.normalize, tt.flip)
			if err != nil {
				t.Fatal(err)
			}

			want := tt.want
			if tt.normalize {
				want = make([]float32, len(tt.want))
				for i, v := range tt.want {
					want[i] = v / 16
				}
			}

			if diff := cmp.Diff([]int{1, 1, 3, 3}, blur.Kernel.Shape()); diff != "" {
				t.Errorf("Kernel-Form falsch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want, blur.Kernel.Floats()); diff != "" {
				t.Errorf("Kernel falsch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := nn.NewBlur(ctx, []float32{1, 1}, true, false); err == nil {
		t.Error("gerade Anzahl Taps: Fehler erwartet")
	}
}

func TestUpscale(t *testing.T) {
	ctx := cpu.NewContext(1)
	x := ctx.FromFloats([]float32{1, 2, 3, 4, 5, 6, 7, 8}, 1, 2, 2, 2)

	out := nn.NewUpscale(2).Forward(ctx, x)
	if diff := cmp.Diff([]int{1, 2, 4, 4}, out.Shape()); diff != "" {
		t.Fatalf("Form falsch (-want +got):\n%s", diff)
	}

	got := out.Floats()
	in := x.Floats()
	for ch := range 2 {
		for y := range 4 {
			for xx := range 4 {
				want := in[(ch*2+y/2)*2+xx/2]
				if v := got[(ch*4+y)*4+xx]; v != want {
					t.Errorf("Pixel (%d,%d,%d): %v, erwartet %v", ch, y, xx, v, want)
				}
			}
		}
	}

	gained := (&nn.Upscale{Factor: 1, Gain: 2}).Forward(ctx, x).Floats()
	if diff := cmp.Diff([]float32{2, 4, 6, 8, 10, 12, 14, 16}, gained); diff != "" {
		t.Errorf("Gain falsch (-want +got):\n%s", diff)
	}
}

func TestParseActivation(t *testing.T) {
	cases := []struct {
		in   string
		want nn.Activation
		err  bool
	}{
		{"lrelu", nn.ActivationLReLU, false},
		{"ReLU", nn.ActivationReLU, false},
		{" relu ", nn.ActivationReLU, false},
		{"tanh", 0, true},
	}

	for _, tt := range cases {
		t.Run(tt.in, func(t *testing.T) {
			got, err := nn.ParseActivation(tt.in)
			if tt.err {
				if !errors.Is(err, nn.ErrUnknownActivation) {
					t.Fatalf("Fehler %v, erwartet ErrUnknownActivation", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("%q: %v, erwartet %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestActivationResolve(t *testing.T) {
	ctx := cpu.NewContext(1)
	x := ctx.FromFloats([]float32{-1, 2}, 2)

	for _, a := range []nn.Activation{nn.ActivationReLU, nn.ActivationLReLU} {
		fn, gain, err := a.Resolve()
		if err != nil {
			t.Fatal(err)
		}
		if gain != math.Sqrt2 {
			t.Errorf("%v: Gain %v, erwartet sqrt(2)", a, gain)
		}

		want := []float32{0, 2}
		if a == nn.ActivationLReLU {
			want = []float32{-0.2, 2}
		}
		if diff := cmp.Diff(want, fn(ctx, x).Floats()); diff != "" {
			t.Errorf("%v falsch (-want +got):\n%s", a, diff)
		}
	}

	if _, _, err := nn.Activation(42).Resolve(); !errors.Is(err, nn.ErrUnknownActivation) {
		t.Errorf("Fehler %v, erwartet ErrUnknownActivation", err)
	}
}

func TestActivationJSON(t *testing.T) {
	var cfg struct {
		Act nn.Activation `json:"nonlinearity"`
	}

	if err := json.Unmarshal([]byte(`{"nonlinearity":"relu"}`), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Act != nn.ActivationReLU {
		t.Errorf("Aktivierung %v, erwartet relu", cfg.Act)
	}

	b, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"nonlinearity":"relu"}` {
		t.Errorf("JSON %s", b)
	}
}

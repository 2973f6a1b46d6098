package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/louis-chevallier/stylegan/ml"
	"github.com/louis-chevallier/stylegan/ml/backend/cpu"
)

type fakeLinear struct {
	Weight ml.Tensor `weight:"weight"`
	Bias   ml.Tensor `weight:"bias,alt:b"`
}

type fakeBlur struct {
	Kernel ml.Tensor `weight:"kernel,buffer"`
}

type fakeConv struct {
	Weight       ml.Tensor `weight:"weight"`
	Bias         ml.Tensor `weight:"bias"`
	Intermediate *fakeBlur `weight:"intermediate"`
}

type named struct {
	name  string
	Layer any
}

func (n named) ParamName() string { return n.name }

type fakeModel struct {
	Layers  []named     `weight:"layers"`
	Blocks  []*fakeConv `weight:"blocks"`
	Missing *fakeLinear `weight:"missing"`
	Untag   ml.Tensor
	Head    *fakeLinear `weight:"head"`
	Extra   []ml.Tensor `weight:"extra"`
}

func newFake(ctx ml.Context) *fakeModel {
	lin := func(out, in int) *fakeLinear {
		return &fakeLinear{
			Weight: ctx.Zeros(ml.DTypeF32, out, in),
			Bias:   ctx.Zeros(ml.DTypeF32, out),
		}
	}

	return &fakeModel{
		Layers: []named{
			{name: "pixel_norm", Layer: struct{}{}},
			{name: "dense0", Layer: lin(2, 3)},
		},
		Blocks: []*fakeConv{
			{Weight: ctx.Zeros(ml.DTypeF32, 1, 1), Bias: ctx.Zeros(ml.DTypeF32, 1)},
			{
				Weight:       ctx.Zeros(ml.DTypeF32, 1, 1),
				Bias:         ctx.Zeros(ml.DTypeF32, 1),
				Intermediate: &fakeBlur{Kernel: ctx.FromFloats([]float32{7}, 1, 1, 1, 1)},
			},
		},
		Untag: ctx.Zeros(ml.DTypeF32, 1),
		Head:  lin(1, 2),
		Extra: []ml.Tensor{ctx.Zeros(ml.DTypeF32, 2)},
	}
}

func TestParseTag(t *testing.T) {
	cases := []struct {
		in   string
		want Tag
	}{
		{"weight", Tag{name: "weight"}},
		{"kernel,buffer", Tag{name: "kernel", buffer: true}},
		{"bias,alt:b,alt:beta", Tag{name: "bias", alternatives: []string{"b", "beta"}}},
		{",alt:only", Tag{name: "only"}},
	}

	for _, tt := range cases {
		t.Run(tt.in, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, parseTag(tt.in), cmp.AllowUnexported(Tag{})); diff != "" {
				t.Errorf("parseTag(%q) (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestManifestOf(t *testing.T) {
	ctx := cpu.NewContext(1)
	m := ManifestOf(newFake(ctx), "g.")

	want := []string{
		"g.layers.dense0.weight",
		"g.layers.dense0.bias",
		"g.blocks.0.weight",
		"g.blocks.0.bias",
		"g.blocks.1.weight",
		"g.blocks.1.bias",
		"g.blocks.1.intermediate.kernel",
		"g.head.weight",
		"g.head.bias",
		"g.extra.0",
	}

	if diff := cmp.Diff(want, m.Names()); diff != "" {
		t.Errorf("Namen falsch (-want +got):\n%s", diff)
	}

	e, ok := m.Get("g.blocks.1.intermediate.kernel")
	if !ok || !e.Buffer {
		t.Errorf("Kernel sollte als Buffer markiert sein: %+v", e)
	}

	e, _ = m.Get("g.head.bias")
	if diff := cmp.Diff(Entry{Shape: []int{1}, Alternatives: []string{"g.head.b"}}, e); diff != "" {
		t.Errorf("Eintrag falsch (-want +got):\n%s", diff)
	}

	if n := m.NumElements(); n != 6+2+2+2+3+2 {
		t.Errorf("NumElements = %d", n)
	}
}

func TestManifestJSONOrder(t *testing.T) {
	m := NewManifest()
	m.Set("z", Entry{Shape: []int{1}})
	m.Set("a", Entry{Shape: []int{2, 3}, Buffer: true})

	b, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}

	want := `{"z":{"shape":[1]},"a":{"shape":[2,3],"buffer":true}}`
	if string(b) != want {
		t.Errorf("JSON %s, erwartet %s", b, want)
	}

	var back Manifest
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"z", "a"}, back.Names()); diff != "" {
		t.Errorf("Reihenfolge falsch (-want +got):\n%s", diff)
	}
}

func fullSource(m *Manifest) MapSource {
	src := MapSource{}
	i := float32(0)
	for name, e := range m.All() {
		data := make([]float32, numel(e.Shape))
		for j := range data {
			i++
			data[j] = i
		}
		src[name] = MapTensor{Shape: e.Shape, Data: data}
	}
	return src
}

func TestLoad(t *testing.T) {
	ctx := cpu.NewContext(1)
	m := newFake(ctx)
	src := fullSource(ManifestOf(m, ""))

	if err := Load(m, "", src); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(src["head.weight"].Data, m.Head.Weight.Floats()); diff != "" {
		t.Errorf("head.weight (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(src["blocks.1.intermediate.kernel"].Data, m.Blocks[1].Intermediate.Kernel.Floats()); diff != "" {
		t.Errorf("kernel (-want +got):\n%s", diff)
	}
}

func TestLoadAlternativeAndBuffer(t *testing.T) {
	ctx := cpu.NewContext(1)
	m := newFake(ctx)
	src := fullSource(ManifestOf(m, ""))

	src["head.b"] = src["head.bias"]
	delete(src, "head.bias")
	delete(src, "blocks.1.intermediate.kernel")

	if err := Load(m, "", src); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(src["head.b"].Data, m.Head.Bias.Floats()); diff != "" {
		t.Errorf("Alternative nicht geladen (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float32{7}, m.Blocks[1].Intermediate.Kernel.Floats()); diff != "" {
		t.Errorf("Buffer sollte Standardwert behalten (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	ctx := cpu.NewContext(1)
	m := newFake(ctx)
	src := fullSource(ManifestOf(m, ""))

	delete(src, "layers.dense0.weight")
	src["head.weight"] = MapTensor{Shape: []int{2, 1}, Data: []float32{1, 2}}

	err := Load(m, "", src)
	if !errors.Is(err, ErrMissingTensor) {
		t.Errorf("erwartet ErrMissingTensor, erhalten %v", err)
	}
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("erwartet ErrShapeMismatch, erhalten %v", err)
	}

	var me *ManifestError
	if !errors.As(err, &me) {
		t.Fatalf("erwartet *ManifestError, erhalten %T", err)
	}

	// Bei Fehlern wird nichts überschrieben
	for _, v := range m.Layers[1].Layer.(*fakeLinear).Bias.Floats() {
		if v != 0 {
			t.Fatal("Tensor wurde trotz Fehler überschrieben")
		}
	}
}

type validated struct {
	W   ml.Tensor `weight:"w"`
	err error
}

func (v *validated) Validate() error { return v.err }

func TestLoadRunsValidator(t *testing.T) {
	ctx := cpu.NewContext(1)
	sentinel := errors.New("ungültig")
	v := &validated{W: ctx.Zeros(ml.DTypeF32, 1), err: sentinel}

	err := Load(v, "", MapSource{"w": {Shape: []int{1}, Data: []float32{1}}})
	if !errors.Is(err, sentinel) {
		t.Errorf("erwartet Validator-Fehler, erhalten %v", err)
	}
}

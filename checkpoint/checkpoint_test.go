package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dashluu/numx/array"
	"github.com/dashluu/numx/nn"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()

	weight, err := array.FromFloat32([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6}, array.Name("layer_weight"))
	if err != nil {
		t.Fatalf("building weight: %v", err)
	}

	bias, err := array.FromFloat32([]int{2}, []float32{0.5, -0.5}, array.Name("layer_bias"))
	if err != nil {
		t.Fatalf("building bias: %v", err)
	}

	params := []*nn.Parameter{
		{Name: "layer_weight", Value: weight},
		{Name: "layer_bias", Value: bias},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "model.zmf")

	if err := Save(ctx, params, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected checkpoint file to exist: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(loaded) != len(params) {
		t.Fatalf("expected %d parameters, got %d", len(params), len(loaded))
	}

	for _, p := range params {
		a, ok := loaded[p.Name]
		if !ok {
			t.Fatalf("missing parameter %q in loaded checkpoint", p.Name)
		}

		if !a.RequiresGrad() {
			t.Errorf("parameter %q: expected RequiresGrad true after load", p.Name)
		}

		want, err := p.Value.ToRaw(ctx)
		if err != nil {
			t.Fatalf("reading original %q: %v", p.Name, err)
		}

		got, err := a.ToRaw(ctx)
		if err != nil {
			t.Fatalf("reading loaded %q: %v", p.Name, err)
		}

		if len(got.F32) != len(want.F32) {
			t.Fatalf("parameter %q: expected %d values, got %d", p.Name, len(want.F32), len(got.F32))
		}

		for i := range want.F32 {
			if got.F32[i] != want.F32[i] {
				t.Errorf("parameter %q: value %d: want %v, got %v", p.Name, i, want.F32[i], got.F32[i])
			}
		}
	}
}

func TestSaveRejectsNonF32(t *testing.T) {
	ctx := context.Background()

	idx, err := array.FromInt32([]int{2}, []int32{1, 2}, array.Name("count"))
	if err != nil {
		t.Fatalf("building int32 parameter: %v", err)
	}

	params := []*nn.Parameter{{Name: "count", Value: idx}}

	path := filepath.Join(t.TempDir(), "model.zmf")

	if err := Save(ctx, params, path); err == nil {
		t.Fatal("expected Save to reject a non-f32 parameter")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.zmf")); err == nil {
		t.Fatal("expected Load to fail for a missing file")
	}
}

// Package checkpoint saves and loads a model's parameters as a ZMF
// (Zerfoo Model Format) protobuf file, the format the teacher's exporter/
// loader pair uses. Scope is f32 only, matching the engine's parameter
// dtype; tensor payloads are encoded as little-endian IEEE-754 float32,
// not the teacher's placeholder %v-to-bytes serialization, which never
// round-tripped.
package checkpoint

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/dashluu/numx/array"
	"github.com/dashluu/numx/dtype"
	"github.com/dashluu/numx/nn"
	"github.com/zerfoo/zmf"
	"google.golang.org/protobuf/proto"
)

const zmfVersion = "1.0.0"

// Save realizes every parameter and writes them to path as a ZMF model,
// keyed by parameter name.
func Save(ctx context.Context, params []*nn.Parameter, path string) error {
	zmfParams := make(map[string]*zmf.Tensor, len(params))

	for _, p := range params {
		if err := p.Value.Eval(ctx); err != nil {
			return fmt.Errorf("checkpoint: realizing %q: %w", p.Name, err)
		}

		if p.Value.DType() != dtype.F32 {
			return fmt.Errorf("checkpoint: parameter %q has dtype %v, only f32 parameters are supported", p.Name, p.Value.DType())
		}

		raw, err := p.Value.ToRaw(ctx)
		if err != nil {
			return fmt.Errorf("checkpoint: reading %q: %w", p.Name, err)
		}

		zmfParams[p.Name] = &zmf.Tensor{
			Dtype: zmf.Tensor_FLOAT32,
			Shape: toInt64Shape(raw.Shape),
			Data:  encodeF32(raw.F32),
		}
	}

	model := &zmf.Model{ZmfVersion: zmfVersion, Graph: &zmf.Graph{Parameters: zmfParams}}

	data, err := proto.Marshal(model)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write %q: %w", path, err)
	}

	return nil
}

// Load reads a ZMF model from path and returns its parameters as realized,
// requires-grad leaves, keyed by name. Callers rebind them onto a freshly
// constructed model's nn.Parameters (names must match).
func Load(path string) (map[string]*array.Array, error) {
	//nolint:gosec // model path is supplied and validated by the caller, same as the teacher's loader.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read %q: %w", path, err)
	}

	model := &zmf.Model{}
	if err := proto.Unmarshal(data, model); err != nil {
		return nil, fmt.Errorf("checkpoint: unmarshal: %w", err)
	}

	out := make(map[string]*array.Array, len(model.Graph.Parameters))

	for name, t := range model.Graph.Parameters {
		if t.Dtype != zmf.Tensor_FLOAT32 {
			return nil, fmt.Errorf("checkpoint: parameter %q has non-f32 dtype %v", name, t.Dtype)
		}

		vals, err := decodeF32(t.Data)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: parameter %q: %w", name, err)
		}

		a, err := array.FromFloat32(toIntShape(t.Shape), vals, array.RequiresGrad(true), array.Name(name))
		if err != nil {
			return nil, fmt.Errorf("checkpoint: parameter %q: %w", name, err)
		}

		out[name] = a
	}

	return out, nil
}

func toInt64Shape(sh []int) []int64 {
	out := make([]int64, len(sh))
	for i, v := range sh {
		out[i] = int64(v)
	}

	return out
}

func toIntShape(sh []int64) []int {
	out := make([]int, len(sh))
	for i, v := range sh {
		out[i] = int(v)
	}

	return out
}

func encodeF32(vals []float32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}

	return buf
}

func decodeF32(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("tensor data length %d is not a multiple of 4", len(buf))
	}

	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}

	return out, nil
}

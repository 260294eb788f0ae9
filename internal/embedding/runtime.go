package embedding

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// WasmRuntime hosts a WASM-compiled embedding model under wazero. The
// module is expected to export `alloc(len) -> ptr` and
// `embed(ptr, len) -> (ptr, len)`, the latter writing a little-endian
// float32 vector of the model's output dimension into its own linear
// memory and returning where it landed.
type WasmRuntime struct {
	runtime   wazero.Runtime
	module    api.Module
	dimension int
}

// NewWasmRuntime compiles and instantiates the model at modulePath. It
// satisfies RuntimeFactory once partially applied with a fixed dimension.
func NewWasmRuntime(ctx context.Context, modulePath string, dimension int) (Runtime, error) {
	data, err := os.ReadFile(modulePath)
	if err != nil {
		return nil, fmt.Errorf("read embedding model %s: %w", modulePath, err)
	}

	r := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("instantiate wasi for embedding model: %w", err)
	}

	mod, err := r.Instantiate(ctx, data)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("instantiate embedding model %s: %w", modulePath, err)
	}

	return &WasmRuntime{runtime: r, module: mod, dimension: dimension}, nil
}

// Dimension reports the model's fixed output width.
func (w *WasmRuntime) Dimension() int {
	return w.dimension
}

// Generate runs the model over text and decodes its float32 output.
func (w *WasmRuntime) Generate(ctx context.Context, text string) ([]float32, error) {
	alloc := w.module.ExportedFunction("alloc")
	embed := w.module.ExportedFunction("embed")
	if alloc == nil || embed == nil {
		return nil, fmt.Errorf("embedding module %s is missing alloc/embed exports", w.module.Name())
	}

	input := []byte(text)
	allocResult, err := alloc.Call(ctx, uint64(len(input)))
	if err != nil {
		return nil, fmt.Errorf("alloc input buffer: %w", err)
	}
	inPtr := uint32(allocResult[0])

	if !w.module.Memory().Write(inPtr, input) {
		return nil, fmt.Errorf("write input buffer out of bounds")
	}

	embedResult, err := embed.Call(ctx, uint64(inPtr), uint64(len(input)))
	if err != nil {
		return nil, fmt.Errorf("embed call: %w", err)
	}
	outPtr, outLen := uint32(embedResult[0]), uint32(embedResult[1])

	raw, ok := w.module.Memory().Read(outPtr, outLen*4)
	if !ok {
		return nil, fmt.Errorf("read output buffer out of bounds")
	}

	vec := make([]float32, outLen)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, nil
}

// Close tears down the wazero runtime and everything compiled into it.
func (w *WasmRuntime) Close(ctx context.Context) error {
	return w.runtime.Close(ctx)
}

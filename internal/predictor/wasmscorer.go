package predictor

import (
	"context"
	"encoding/binary"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/kisquant/daytrader/pkg/errors"
)

// WasmScorer is a Scorer backed by a WebAssembly module loaded from
// onnx_model.model_path, exercised through an exported "score" function
// rather than a native ONNX runtime — the spec treats the model as an
// opaque scorer (pkg/errors ErrCodePredictionModelIO wraps any failure
// here the same way it would wrap an ONNX Runtime session error), and a
// WASM-hosted scorer is exactly as opaque to Predictor as a native one.
// Grounded on the teacher's pkg/strategy/strategy_host.extension.go, which
// compiles and instantiates a wazero.Runtime module and resolves its
// "malloc"/"free" exports before calling into it; WasmScorer reuses that
// same malloc/write/call/free shape for a single fixed-arity scoring call
// instead of the teacher's multi-function strategy-plugin API.
type WasmScorer struct {
	ctx     context.Context
	runtime wazero.Runtime
	module  api.Module

	malloc api.Function
	free   api.Function
	score  api.Function
}

// NewWasmScorer compiles and instantiates the WASM module at path. The
// module must export "malloc(size uint32) uint32", "free(ptr uint32)",
// and "score(ptr uint32, len uint32) float64", where ptr addresses
// len float64 values packed little-endian into the module's linear memory.
func NewWasmScorer(ctx context.Context, path string) (*WasmScorer, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodePredictionModelIO, err, "reading wasm scorer module %s", path)
	}

	runtime := wazero.NewRuntime(ctx)

	compiled, err := runtime.CompileModule(ctx, bytes)
	if err != nil {
		_ = runtime.Close(ctx)

		return nil, errors.Wrapf(errors.ErrCodePredictionModelIO, err, "compiling wasm scorer module %s", path)
	}

	module, err := runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		_ = runtime.Close(ctx)

		return nil, errors.Wrapf(errors.ErrCodePredictionModelIO, err, "instantiating wasm scorer module %s", path)
	}

	malloc := module.ExportedFunction("malloc")
	free := module.ExportedFunction("free")
	score := module.ExportedFunction("score")

	if malloc == nil || free == nil || score == nil {
		_ = runtime.Close(ctx)

		return nil, errors.Newf(errors.ErrCodePredictionModelIO, "wasm scorer module %s must export malloc, free, and score", path)
	}

	return &WasmScorer{ctx: ctx, runtime: runtime, module: module, malloc: malloc, free: free, score: score}, nil
}

var _ Scorer = (*WasmScorer)(nil)

// Score marshals featureVector into the module's linear memory and calls
// its exported score function, freeing the allocation on every path.
func (w *WasmScorer) Score(featureVector []float64) (float64, error) {
	size := uint64(len(featureVector)) * 8

	results, err := w.malloc.Call(w.ctx, size)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodePredictionModelIO, err, "wasm malloc(%d) failed", size)
	}

	ptr := uint32(results[0])
	defer w.free.Call(w.ctx, uint64(ptr)) //nolint:errcheck // best-effort cleanup

	buf := make([]byte, size)
	for i, v := range featureVector {
		binary.LittleEndian.PutUint64(buf[i*8:], api.EncodeF64(v))
	}

	if !w.module.Memory().Write(ptr, buf) {
		return 0, errors.Newf(errors.ErrCodePredictionModelIO, "wasm memory write out of bounds at ptr=%d size=%d", ptr, size)
	}

	out, err := w.score.Call(w.ctx, uint64(ptr), uint64(len(featureVector)))
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodePredictionModelIO, err, "wasm score call failed")
	}

	if len(out) != 1 {
		return 0, errors.Newf(errors.ErrCodePredictionModelIO, "wasm score returned %d results, expected 1", len(out))
	}

	return api.DecodeF64(out[0]), nil
}

// Close tears down the module's runtime.
func (w *WasmScorer) Close() error {
	return w.runtime.Close(w.ctx)
}

package wasmmem

import (
	"context"
	"encoding/binary"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/objgraph/errors"
	"github.com/wippyai/objgraph/heap"
)

// PageSize is the WebAssembly page size.
const PageSize = 65536

// Options configures a standalone wasm memory.
type Options struct {
	// Pages is the initial size in 64 KiB pages.
	Pages uint32
	// MaxPages caps growth. 0 means 65536 pages (4 GiB).
	MaxPages uint32
	// ExportName names the memory export.
	ExportName string
}

// DefaultOptions returns a one page memory growable to 16 MiB.
func DefaultOptions() Options {
	return Options{
		Pages:      1,
		MaxPages:   256,
		ExportName: "memory",
	}
}

// Memory is a wazero linear memory with its own allocator. Objects decoded
// into it can be handed to guest modules importing the memory.
// Not safe for concurrent use.
type Memory struct {
	*View
	*heap.Arena

	runtime wazero.Runtime
	module  api.Module
}

// New instantiates a memory-only module in a private wazero runtime.
func New(ctx context.Context, opts Options) (*Memory, error) {
	if opts.ExportName == "" {
		opts.ExportName = "memory"
	}
	if opts.MaxPages != 0 && opts.MaxPages < opts.Pages {
		return nil, errors.New(errors.PhaseInit, errors.KindInvalidInput).
			Value(opts.MaxPages).
			Detail("max pages %d below initial %d", opts.MaxPages, opts.Pages).
			Build()
	}

	cfg := wazero.NewRuntimeConfig()
	if opts.MaxPages != 0 {
		cfg = cfg.WithMemoryLimitPages(opts.MaxPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	compiled, err := rt.CompileModule(ctx, memoryModule(opts))
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseInit, errors.KindUnsupported, err, "compile memory module")
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseInit, errors.KindAllocation, err, "instantiate memory module")
	}

	mem := mod.ExportedMemory(opts.ExportName)
	if mem == nil {
		_ = rt.Close(ctx)
		return nil, errors.NotFound(errors.PhaseInit, "memory export", opts.ExportName)
	}

	max := uint32(0)
	if opts.MaxPages != 0 && opts.MaxPages < 65536 {
		max = opts.MaxPages * PageSize
	}
	m := &Memory{
		View:    NewView(mem),
		runtime: rt,
		module:  mod,
	}
	m.Arena = heap.NewArena(pages{m.View}, max)

	Logger().Debug("wasm memory created",
		zap.Uint32("pages", opts.Pages),
		zap.Uint32("max_pages", opts.MaxPages))
	return m, nil
}

// Module returns the module exporting the memory.
func (m *Memory) Module() api.Module {
	return m.module
}

// Runtime returns the private runtime.
func (m *Memory) Runtime() wazero.Runtime {
	return m.runtime
}

// Close releases the runtime and the memory.
func (m *Memory) Close(ctx context.Context) error {
	return m.runtime.Close(ctx)
}

// pages is the heap.Arena backing of a View. It grows whole pages.
type pages struct {
	*View
}

func (p pages) Grow(delta uint32) (uint32, error) {
	n := (delta + PageSize - 1) / PageSize
	if _, ok := p.mem.Grow(n); !ok {
		return 0, errors.New(errors.PhaseDecode, errors.KindAllocation).
			Value(n).
			Detail("memory of %d pages refused to grow by %d", p.mem.Size()/PageSize, n).
			Build()
	}
	return p.mem.Size(), nil
}

func (p pages) Zero(offset, size uint32) error {
	return p.Write(offset, make([]byte, size))
}

// memoryModule encodes a module that defines and exports one memory.
func memoryModule(opts Options) []byte {
	limits := []byte{0x00}
	limits = binary.AppendUvarint(limits, uint64(opts.Pages))
	if opts.MaxPages != 0 {
		limits[0] = 0x01
		limits = binary.AppendUvarint(limits, uint64(opts.MaxPages))
	}

	memory := append([]byte{0x01}, limits...)

	export := []byte{0x01}
	export = binary.AppendUvarint(export, uint64(len(opts.ExportName)))
	export = append(export, opts.ExportName...)
	export = append(export, 0x02, 0x00) // memory 0

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = appendSection(out, 5, memory)
	out = appendSection(out, 7, export)
	return out
}

func appendSection(out []byte, id byte, body []byte) []byte {
	out = append(out, id)
	out = binary.AppendUvarint(out, uint64(len(body)))
	return append(out, body...)
}

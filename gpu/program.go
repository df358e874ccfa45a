//go:build gpu

package gpu

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/LynnColeArt/parmin"
	"github.com/LynnColeArt/parmin/kernels"
	"github.com/openfluke/webgpu/wgpu"
)

// paramsBinding is the uniform block holding a kernel's scalar arguments.
const paramsBinding = 3

// paramsWords is the size of the uniform block; WGSL pads it to 16 bytes.
const paramsWords = 4

// binding maps kernel argument indices onto shader resources. Arguments
// not listed must still be set but have no shader counterpart.
type binding struct {
	numArgs   int
	buffers   map[int]uint32 // argument index -> storage binding
	scalars   map[int]int    // argument index -> params word
	workgroup int            // @workgroup_size of the entry point
}

var bindings = map[string]binding{
	kernels.PartialMinName: {
		numArgs: kernels.PartialMinArgs,
		buffers: map[int]uint32{
			kernels.ArgSource:   0,
			kernels.ArgGroupMin: 1,
			kernels.ArgDebug:    2,
		},
		scalars: map[int]int{
			kernels.ArgElements: 0,
			kernels.ArgMode:     1,
		},
		workgroup: parmin.DefaultGroupWidth,
	},
	kernels.GlobalReduceName: {
		numArgs: kernels.GlobalReduceArgs,
		buffers: map[int]uint32{
			kernels.ArgGroupMin: 1,
		},
		workgroup: 1,
	},
}

type program struct {
	acc       *Accelerator
	module    *wgpu.ShaderModule
	entries   []string
	pipelines map[string]*wgpu.ComputePipeline
	params    []*wgpu.Buffer
	log       string
	once      sync.Once
}

// BuildProgram compiles WGSL source and creates a pipeline per entry point.
func (a *Accelerator) BuildProgram(source string) (parmin.Program, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	entries := parmin.EntryPoints(source)
	if len(entries) == 0 {
		return nil, parmin.NewCompileError("BuildProgram",
			fmt.Sprintf("error: no kernel entry points found in %d bytes of source\n", len(source)), nil)
	}

	module, err := a.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "minreduce",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return nil, parmin.NewCompileError("BuildProgram", err.Error(), err)
	}

	p := &program{
		acc:       a,
		module:    module,
		entries:   entries,
		pipelines: make(map[string]*wgpu.ComputePipeline, len(entries)),
	}
	var log strings.Builder
	for _, name := range entries {
		pipeline, err := a.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label: name,
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     module,
				EntryPoint: name,
			},
		})
		if err != nil {
			fmt.Fprintf(&log, "error: entry point '%s': %v\n", name, err)
			continue
		}
		p.pipelines[name] = pipeline
	}
	if log.Len() > 0 {
		p.Release()
		return nil, parmin.NewCompileError("BuildProgram", log.String(), nil)
	}
	p.log = fmt.Sprintf("compiled %s for %s\n", strings.Join(entries, ", "), a.info.Name)

	a.mu.Lock()
	a.programs = append(a.programs, p)
	a.mu.Unlock()
	return p, nil
}

func (p *program) EntryPoints() []string { return p.entries }
func (p *program) BuildLog() string      { return p.log }

// Release frees the pipelines and the shader module.
func (p *program) Release() {
	p.once.Do(func() {
		for _, pl := range p.pipelines {
			pl.Release()
		}
		for _, b := range p.params {
			b.Destroy()
		}
		p.module.Release()
	})
}

// Kernel returns the kernel for an entry point with a known binding table.
func (p *program) Kernel(name string) (parmin.Kernel, error) {
	pipeline, ok := p.pipelines[name]
	layout, known := bindings[name]
	if !ok || !known {
		return nil, &parmin.Error{
			Type:    parmin.ErrTypeCompile,
			Op:      "Kernel",
			Message: fmt.Sprintf("no entry point %q in program", name),
			Code:    parmin.InvalidKernelName,
		}
	}

	k := &kernel{
		prog:     p,
		name:     name,
		pipeline: pipeline,
		layout:   layout,
		args:     make([]any, layout.numArgs),
		set:      make([]bool, layout.numArgs),
	}
	if len(layout.scalars) > 0 {
		params, err := p.acc.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: name + "_params",
			Size:  paramsWords * parmin.WordSize,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, parmin.NewMemoryError("Kernel", name+" params", err)
		}
		k.params = params
		p.acc.mu.Lock()
		p.params = append(p.params, params)
		p.acc.mu.Unlock()
	}
	return k, nil
}

type kernel struct {
	prog     *program
	name     string
	pipeline *wgpu.ComputePipeline
	layout   binding
	params   *wgpu.Buffer

	mu     sync.Mutex
	args   []any
	set    []bool
	values [paramsWords]uint32
	dirty  bool
}

func (k *kernel) Name() string { return k.name }

// SetArg binds a buffer, a local memory request or a scalar. Local memory
// is declared in the shader, so LocalMem arguments are only validated.
func (k *kernel) SetArg(index int, value any) error {
	if index < 0 || index >= len(k.args) {
		return &parmin.Error{
			Type:    parmin.ErrTypeInvalidArg,
			Op:      "SetArg",
			Message: fmt.Sprintf("%s takes %d arguments, index %d", k.name, len(k.args), index),
			Code:    parmin.InvalidArgIndex,
		}
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	switch v := value.(type) {
	case *buffer:
		if v.acc != k.prog.acc {
			return k.argError(index, parmin.InvalidMemObject, "buffer belongs to another device")
		}
	case parmin.LocalMem:
		if v.Size <= 0 || v.Size%parmin.WordSize != 0 {
			return k.argError(index, parmin.InvalidArgSize, fmt.Sprintf("local size %d is not a positive word multiple", v.Size))
		}
	case uint32:
		k.setScalar(index, v)
	case int:
		if v < 0 || uint64(v) > math.MaxUint32 {
			return k.argError(index, parmin.InvalidArgValue, fmt.Sprintf("scalar %d does not fit in uint32", v))
		}
		k.setScalar(index, uint32(v))
	default:
		return k.argError(index, parmin.InvalidArgValue, fmt.Sprintf("unsupported argument type %T", value))
	}
	k.args[index] = value
	k.set[index] = true
	return nil
}

func (k *kernel) setScalar(index int, v uint32) {
	if word, ok := k.layout.scalars[index]; ok {
		k.values[word] = v
		k.dirty = true
	}
}

func (k *kernel) argError(index int, code parmin.Code, msg string) error {
	return &parmin.Error{
		Type:    parmin.ErrTypeInvalidArg,
		Op:      "SetArg",
		Message: fmt.Sprintf("%s arg %d: %s", k.name, index, msg),
		Code:    code,
	}
}

package parmin

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// KernelSpec is a native kernel implementation the host runtime links
// program entry points against.
type KernelSpec struct {
	Name    string
	NumArgs int
	Func    KernelFunc
}

var (
	registryMu sync.RWMutex
	registry   = map[string]KernelSpec{}
)

// RegisterKernel makes a native implementation available to programs built
// on the host runtime. It panics on duplicate or malformed registrations,
// which are programming errors.
func RegisterKernel(spec KernelSpec) {
	if spec.Name == "" || spec.Func == nil || spec.NumArgs < 0 {
		panic(fmt.Sprintf("parmin: invalid kernel registration %q", spec.Name))
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[spec.Name]; dup {
		panic(fmt.Sprintf("parmin: kernel %q registered twice", spec.Name))
	}
	registry[spec.Name] = spec
}

func lookupKernel(name string) (KernelSpec, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	spec, ok := registry[name]
	return spec, ok
}

// Entry points are recognised in WGSL (@compute ... fn name) and in OpenCL C
// (__kernel void name / kernel void name).
var (
	wgslEntry   = regexp.MustCompile(`@compute(?:\s*@\w+\s*(?:\([^)]*\))?)*\s*fn\s+([A-Za-z_]\w*)`)
	openclEntry = regexp.MustCompile(`(?m)(?:^|\s)(?:__kernel|kernel)\s+void\s+([A-Za-z_]\w*)`)
	lineComment = regexp.MustCompile(`//[^\n]*`)
)

// EntryPoints lists the kernel entry points declared in source, in order
// of appearance.
func EntryPoints(source string) []string {
	text := lineComment.ReplaceAllString(source, "")
	var names []string
	seen := map[string]bool{}
	for _, re := range []*regexp.Regexp{wgslEntry, openclEntry} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
	}
	return names
}

// hostProgram links the entry points of a source text to native kernels.
type hostProgram struct {
	ctx     *Context
	entries []string
	specs   map[string]KernelSpec
	log     string
}

// BuildProgram "compiles" source for the host device: every declared entry
// point must have a registered native implementation. On failure the
// returned error carries a build log naming each unresolved entry point.
func (ctx *Context) BuildProgram(source string) (Program, error) {
	if ctx.released.Load() {
		return nil, ErrReleased
	}

	entries := EntryPoints(source)
	var log strings.Builder
	if len(entries) == 0 {
		fmt.Fprintf(&log, "error: no kernel entry points found in %d bytes of source\n", len(source))
	}

	specs := make(map[string]KernelSpec, len(entries))
	for _, name := range entries {
		spec, ok := lookupKernel(name)
		if !ok {
			fmt.Fprintf(&log, "error: entry point '%s' has no implementation on %s\n", name, ctx.device.Name)
			continue
		}
		specs[name] = spec
	}
	if log.Len() > 0 {
		return nil, NewCompileError("BuildProgram", log.String(), nil)
	}

	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	p := &hostProgram{
		ctx:     ctx,
		entries: entries,
		specs:   specs,
		log:     fmt.Sprintf("linked %s for %s\n", strings.Join(names, ", "), ctx.device.Name),
	}
	ctx.mu.Lock()
	ctx.programs = append(ctx.programs, p)
	ctx.mu.Unlock()
	return p, nil
}

func (p *hostProgram) EntryPoints() []string { return p.entries }
func (p *hostProgram) BuildLog() string      { return p.log }

// Release drops the linked kernels.
func (p *hostProgram) Release() {
	p.specs = nil
}

// Kernel creates a kernel object for an entry point of the program.
func (p *hostProgram) Kernel(name string) (Kernel, error) {
	spec, ok := p.specs[name]
	if !ok {
		return nil, &Error{
			Type:    ErrTypeCompile,
			Op:      "Kernel",
			Message: fmt.Sprintf("no entry point %q in program", name),
			Code:    InvalidKernelName,
		}
	}
	return &hostKernel{
		ctx:  p.ctx,
		spec: spec,
		args: make([]any, spec.NumArgs),
		set:  make([]bool, spec.NumArgs),
	}, nil
}

// hostKernel is a native kernel plus its bound arguments.
type hostKernel struct {
	ctx  *Context
	spec KernelSpec
	mu   sync.Mutex
	args []any
	set  []bool
}

func (k *hostKernel) Name() string { return k.spec.Name }

// SetArg binds a buffer, a LocalMem request or an unsigned scalar to the
// argument at index.
func (k *hostKernel) SetArg(index int, value any) error {
	if index < 0 || index >= len(k.args) {
		return &Error{
			Type:    ErrTypeInvalidArg,
			Op:      "SetArg",
			Message: fmt.Sprintf("%s takes %d arguments, index %d", k.spec.Name, len(k.args), index),
			Code:    InvalidArgIndex,
		}
	}

	var bound any
	switch v := value.(type) {
	case *hostBuffer:
		if v.ctx != k.ctx {
			return k.argError(index, InvalidMemObject, "buffer belongs to another context")
		}
		bound = v
	case LocalMem:
		if v.Size <= 0 || v.Size%WordSize != 0 {
			return k.argError(index, InvalidArgSize, fmt.Sprintf("local size %d is not a positive word multiple", v.Size))
		}
		bound = v
	case uint32:
		bound = v
	case int:
		if v < 0 || uint64(v) > 0xFFFFFFFF {
			return k.argError(index, InvalidArgValue, fmt.Sprintf("scalar %d does not fit in uint32", v))
		}
		bound = uint32(v)
	case Buffer:
		return k.argError(index, InvalidMemObject, "buffer belongs to another runtime")
	default:
		return k.argError(index, InvalidArgValue, fmt.Sprintf("unsupported argument type %T", value))
	}

	k.mu.Lock()
	k.args[index] = bound
	k.set[index] = true
	k.mu.Unlock()
	return nil
}

func (k *hostKernel) argError(index int, code Code, msg string) error {
	return &Error{
		Type:    ErrTypeInvalidArg,
		Op:      "SetArg",
		Message: fmt.Sprintf("%s arg %d: %s", k.spec.Name, index, msg),
		Code:    code,
	}
}

// snapshot captures the bound arguments at enqueue time.
func (k *hostKernel) snapshot() ([]any, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i, ok := range k.set {
		if !ok {
			return nil, NewDispatchError("EnqueueKernel", InvalidKernelArgs,
				fmt.Sprintf("%s arg %d is not set", k.spec.Name, i), nil)
		}
	}
	return append([]any(nil), k.args...), nil
}

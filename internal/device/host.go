package device

import (
	"fmt"
	"regexp"
	"strings"
)

// HostKernel is the Go implementation of a kernel executed by HostAPI. It receives
// the input buffer and the size argument and returns the value stored to the output.
type HostKernel func(x []float64, size uint32) float64

// SumKernel is the host implementation of SumKernelSource.
func SumKernel(x []float64, size uint32) float64 {
	var s float64
	for i := uint32(0); i < size; i++ {
		s += x[i]
	}
	return s
}

var kernelDecl = regexp.MustCompile(`__kernel\s+void\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

type objectKind int

const (
	objContext objectKind = iota + 1
	objQueue
	objProgram
	objKernel
	objMem
)

type hostObject struct {
	kind objectKind

	// program
	source  string
	built   bool
	status  BuildStatus
	log     string
	kernels []string

	// kernel
	name string
	args map[uint32]any

	// mem
	data []float64
}

// HostPlatform describes one platform exposed by HostAPI.
type HostPlatform struct {
	Info    PlatformInfo
	Devices []DeviceInfo
}

// HostAPI is an in-process emulation of the accelerator API. Programs are "compiled"
// by locating their kernel declarations and binding each name to a registered Go
// function. It records every call so resource ordering can be inspected.
type HostAPI struct {
	platforms []HostPlatform
	kernels   map[string]HostKernel
	failures  map[string]*injectedFailure

	objects map[uintptr]*hostObject
	next    uintptr

	calls    []string
	liveMem  int
	peakMem  int
	enqueued int
}

// NewHostAPI returns an emulator with one platform holding one device and the sum
// kernel registered.
func NewHostAPI() *HostAPI {
	return NewHostAPIWithPlatforms([]HostPlatform{{
		Info: PlatformInfo{
			Name:    "Host Emulation",
			Vendor:  "dispatchbench",
			Version: "OpenCL 1.2 host",
		},
		Devices: []DeviceInfo{{
			Name:            "Go host emulator",
			Vendor:          "dispatchbench",
			Version:         "OpenCL 1.2",
			Type:            DeviceTypeCPU,
			MaxComputeUnits: 1,
		}},
	}})
}

// NewHostAPIWithPlatforms returns an emulator exposing the given platforms.
func NewHostAPIWithPlatforms(platforms []HostPlatform) *HostAPI {
	return &HostAPI{
		platforms: platforms,
		kernels:   map[string]HostKernel{SumKernelName: SumKernel},
		failures:  make(map[string]*injectedFailure),
		objects:   make(map[uintptr]*hostObject),
	}
}

// RegisterKernel binds a kernel name to a Go implementation.
func (h *HostAPI) RegisterKernel(name string, fn HostKernel) {
	h.kernels[name] = fn
}

type injectedFailure struct {
	code  Status
	after int
}

// FailOn makes every later call of op return code.
func (h *HostAPI) FailOn(op string, code Status) {
	h.FailAfter(op, 0, code)
}

// FailAfter lets the next n calls of op succeed and fails every call after them.
func (h *HostAPI) FailAfter(op string, n int, code Status) {
	h.failures[op] = &injectedFailure{code: code, after: n}
}

// Calls returns the API operations invoked so far, in order.
func (h *HostAPI) Calls() []string {
	return append([]string(nil), h.calls...)
}

// LiveBuffers reports the number of memory objects not yet released.
func (h *HostAPI) LiveBuffers() int {
	return h.liveMem
}

// PeakBuffers reports the largest number of memory objects alive at once.
func (h *HostAPI) PeakBuffers() int {
	return h.peakMem
}

// LiveObjects reports every unreleased object, buffers included.
func (h *HostAPI) LiveObjects() int {
	return len(h.objects)
}

// Enqueued reports how many tasks were submitted.
func (h *HostAPI) Enqueued() int {
	return h.enqueued
}

func (h *HostAPI) call(op string) error {
	h.calls = append(h.calls, op)
	f, ok := h.failures[op]
	if !ok {
		return nil
	}
	if f.after > 0 {
		f.after--
		return nil
	}
	return statusError(op, f.code)
}

func (h *HostAPI) alloc(obj *hostObject) uintptr {
	h.next++
	h.objects[h.next] = obj
	return h.next
}

func (h *HostAPI) lookup(id uintptr, kind objectKind) (*hostObject, bool) {
	obj, ok := h.objects[id]
	if !ok || obj.kind != kind {
		return nil, false
	}
	return obj, true
}

func (h *HostAPI) release(op string, id uintptr, kind objectKind, invalid Status) error {
	if err := h.call(op); err != nil {
		return err
	}
	if _, ok := h.lookup(id, kind); !ok {
		return statusError(op, invalid)
	}
	delete(h.objects, id)
	if kind == objMem {
		h.liveMem--
	}
	return nil
}

func (h *HostAPI) PlatformIDs() ([]PlatformID, error) {
	if err := h.call("clGetPlatformIDs"); err != nil {
		return nil, err
	}
	ids := make([]PlatformID, len(h.platforms))
	for i := range h.platforms {
		ids[i] = PlatformID(i + 1)
	}
	return ids, nil
}

func (h *HostAPI) platform(id PlatformID) (HostPlatform, bool) {
	i := int(id) - 1
	if i < 0 || i >= len(h.platforms) {
		return HostPlatform{}, false
	}
	return h.platforms[i], true
}

func (h *HostAPI) PlatformInfo(id PlatformID) (PlatformInfo, error) {
	if err := h.call("clGetPlatformInfo"); err != nil {
		return PlatformInfo{}, err
	}
	p, ok := h.platform(id)
	if !ok {
		return PlatformInfo{}, statusError("clGetPlatformInfo", StatusInvalidPlatform)
	}
	info := p.Info
	info.Devices = nil
	return info, nil
}

// Device handles encode the platform in the high bits so they stay unique.
const (
	deviceShift = 16
	deviceMask  = 1<<deviceShift - 1
)

func (h *HostAPI) DeviceIDs(platform PlatformID) ([]DeviceID, error) {
	if err := h.call("clGetDeviceIDs"); err != nil {
		return nil, err
	}
	p, ok := h.platform(platform)
	if !ok {
		return nil, statusError("clGetDeviceIDs", StatusInvalidPlatform)
	}
	ids := make([]DeviceID, len(p.Devices))
	for i := range p.Devices {
		ids[i] = DeviceID(uintptr(platform)<<deviceShift | uintptr(i+1))
	}
	return ids, nil
}

func (h *HostAPI) device(id DeviceID) (DeviceInfo, bool) {
	p, ok := h.platform(PlatformID(uintptr(id) >> deviceShift))
	if !ok {
		return DeviceInfo{}, false
	}
	i := int(uintptr(id)&deviceMask) - 1
	if i < 0 || i >= len(p.Devices) {
		return DeviceInfo{}, false
	}
	return p.Devices[i], true
}

func (h *HostAPI) DeviceInfo(id DeviceID) (DeviceInfo, error) {
	if err := h.call("clGetDeviceInfo"); err != nil {
		return DeviceInfo{}, err
	}
	info, ok := h.device(id)
	if !ok {
		return DeviceInfo{}, statusError("clGetDeviceInfo", StatusInvalidDevice)
	}
	return info, nil
}

func (h *HostAPI) CreateContext(device DeviceID) (ContextID, error) {
	if err := h.call("clCreateContext"); err != nil {
		return 0, err
	}
	if _, ok := h.device(device); !ok {
		return 0, statusError("clCreateContext", StatusInvalidDevice)
	}
	return ContextID(h.alloc(&hostObject{kind: objContext})), nil
}

func (h *HostAPI) CreateCommandQueue(ctx ContextID, device DeviceID) (QueueID, error) {
	if err := h.call("clCreateCommandQueue"); err != nil {
		return 0, err
	}
	if _, ok := h.lookup(uintptr(ctx), objContext); !ok {
		return 0, statusError("clCreateCommandQueue", StatusInvalidContext)
	}
	if _, ok := h.device(device); !ok {
		return 0, statusError("clCreateCommandQueue", StatusInvalidDevice)
	}
	return QueueID(h.alloc(&hostObject{kind: objQueue})), nil
}

func (h *HostAPI) CreateProgram(ctx ContextID, source string) (ProgramID, error) {
	if err := h.call("clCreateProgramWithSource"); err != nil {
		return 0, err
	}
	if _, ok := h.lookup(uintptr(ctx), objContext); !ok {
		return 0, statusError("clCreateProgramWithSource", StatusInvalidContext)
	}
	if source == "" {
		return 0, statusError("clCreateProgramWithSource", StatusInvalidValue)
	}
	return ProgramID(h.alloc(&hostObject{kind: objProgram, source: source, status: BuildStatusNone})), nil
}

func (h *HostAPI) BuildProgram(program ProgramID, device DeviceID) error {
	if err := h.call("clBuildProgram"); err != nil {
		return err
	}
	p, ok := h.lookup(uintptr(program), objProgram)
	if !ok {
		return statusError("clBuildProgram", StatusInvalidProgram)
	}
	if _, ok := h.device(device); !ok {
		return statusError("clBuildProgram", StatusInvalidDevice)
	}

	names, diagnostics := h.compile(p.source)
	if len(diagnostics) > 0 {
		p.status = BuildStatusError
		p.log = strings.Join(diagnostics, "\n")
		return statusError("clBuildProgram", StatusBuildProgramFailure)
	}
	p.built = true
	p.status = BuildStatusSuccess
	p.kernels = names
	return nil
}

func (h *HostAPI) compile(source string) ([]string, []string) {
	var diagnostics []string
	if d := balance(source, '{', '}'); d != 0 {
		diagnostics = append(diagnostics, fmt.Sprintf("<source>: error: unbalanced braces (%+d)", d))
	}
	if d := balance(source, '(', ')'); d != 0 {
		diagnostics = append(diagnostics, fmt.Sprintf("<source>: error: unbalanced parentheses (%+d)", d))
	}

	matches := kernelDecl.FindAllStringSubmatchIndex(source, -1)
	if len(matches) == 0 {
		diagnostics = append(diagnostics, "<source>: error: no __kernel function declared")
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := source[m[2]:m[3]]
		if _, ok := h.kernels[name]; !ok {
			line := strings.Count(source[:m[0]], "\n") + 1
			diagnostics = append(diagnostics, fmt.Sprintf("<source>:%d: error: no host implementation for kernel '%s'", line, name))
			continue
		}
		names = append(names, name)
	}
	return names, diagnostics
}

func balance(s string, open, closing rune) int {
	d := 0
	for _, r := range s {
		switch r {
		case open:
			d++
		case closing:
			d--
		}
	}
	return d
}

func (h *HostAPI) ProgramBuildInfo(program ProgramID, device DeviceID) (BuildStatus, string, error) {
	if err := h.call("clGetProgramBuildInfo"); err != nil {
		return BuildStatusNone, "", err
	}
	p, ok := h.lookup(uintptr(program), objProgram)
	if !ok {
		return BuildStatusNone, "", statusError("clGetProgramBuildInfo", StatusInvalidProgram)
	}
	if _, ok := h.device(device); !ok {
		return BuildStatusNone, "", statusError("clGetProgramBuildInfo", StatusInvalidDevice)
	}
	return p.status, p.log, nil
}

func (h *HostAPI) CreateKernels(program ProgramID) ([]KernelID, error) {
	if err := h.call("clCreateKernelsInProgram"); err != nil {
		return nil, err
	}
	p, ok := h.lookup(uintptr(program), objProgram)
	if !ok {
		return nil, statusError("clCreateKernelsInProgram", StatusInvalidProgram)
	}
	if !p.built {
		return nil, statusError("clCreateKernelsInProgram", StatusInvalidProgramExecutable)
	}
	ids := make([]KernelID, len(p.kernels))
	for i, name := range p.kernels {
		ids[i] = KernelID(h.alloc(&hostObject{kind: objKernel, name: name, args: make(map[uint32]any)}))
	}
	return ids, nil
}

func (h *HostAPI) CreateBuffer(ctx ContextID, size int, host []float64) (MemID, error) {
	if err := h.call("clCreateBuffer"); err != nil {
		return 0, err
	}
	if _, ok := h.lookup(uintptr(ctx), objContext); !ok {
		return 0, statusError("clCreateBuffer", StatusInvalidContext)
	}
	if size <= 0 || size%ElementSize != 0 {
		return 0, statusError("clCreateBuffer", StatusInvalidBufferSize)
	}
	data := make([]float64, size/ElementSize)
	if host != nil {
		if len(host) < len(data) {
			return 0, statusError("clCreateBuffer", StatusInvalidValue)
		}
		copy(data, host)
	}

	id := h.alloc(&hostObject{kind: objMem, data: data})
	h.liveMem++
	if h.liveMem > h.peakMem {
		h.peakMem = h.liveMem
	}
	return MemID(id), nil
}

func (h *HostAPI) setArg(kernel KernelID, index uint32, value any) error {
	const op = "clSetKernelArg"
	if err := h.call(op); err != nil {
		return err
	}
	k, ok := h.lookup(uintptr(kernel), objKernel)
	if !ok {
		return statusError(op, StatusInvalidKernel)
	}
	if index > 2 {
		return statusError(op, StatusInvalidArgIndex)
	}
	if mem, isMem := value.(MemID); isMem {
		if _, ok := h.lookup(uintptr(mem), objMem); !ok {
			return statusError(op, StatusInvalidMemObject)
		}
	}
	k.args[index] = value
	return nil
}

func (h *HostAPI) SetKernelArgMem(kernel KernelID, index uint32, mem MemID) error {
	return h.setArg(kernel, index, mem)
}

func (h *HostAPI) SetKernelArgUint(kernel KernelID, index uint32, value uint32) error {
	return h.setArg(kernel, index, value)
}

func (h *HostAPI) EnqueueTask(queue QueueID, kernel KernelID) error {
	if err := h.call("clEnqueueTask"); err != nil {
		return err
	}
	if _, ok := h.lookup(uintptr(queue), objQueue); !ok {
		return statusError("clEnqueueTask", StatusInvalidCommandQueue)
	}
	k, ok := h.lookup(uintptr(kernel), objKernel)
	if !ok {
		return statusError("clEnqueueTask", StatusInvalidKernel)
	}

	inID, ok1 := k.args[0].(MemID)
	outID, ok2 := k.args[1].(MemID)
	size, ok3 := k.args[2].(uint32)
	if !ok1 || !ok2 || !ok3 {
		return statusError("clEnqueueTask", StatusInvalidKernelArgs)
	}
	in, ok1 := h.lookup(uintptr(inID), objMem)
	out, ok2 := h.lookup(uintptr(outID), objMem)
	if !ok1 || !ok2 {
		return statusError("clEnqueueTask", StatusInvalidMemObject)
	}
	if int(size) > len(in.data) || len(out.data) == 0 {
		return statusError("clEnqueueTask", StatusOutOfResources)
	}

	// In-order queue: the task completes before the next command is accepted.
	out.data[0] = h.kernels[k.name](in.data, size)
	h.enqueued++
	return nil
}

func (h *HostAPI) ReadScalar(queue QueueID, mem MemID) (float64, error) {
	if err := h.call("clEnqueueReadBuffer"); err != nil {
		return 0, err
	}
	if _, ok := h.lookup(uintptr(queue), objQueue); !ok {
		return 0, statusError("clEnqueueReadBuffer", StatusInvalidCommandQueue)
	}
	m, ok := h.lookup(uintptr(mem), objMem)
	if !ok {
		return 0, statusError("clEnqueueReadBuffer", StatusInvalidMemObject)
	}
	return m.data[0], nil
}

func (h *HostAPI) ReleaseMem(mem MemID) error {
	return h.release("clReleaseMemObject", uintptr(mem), objMem, StatusInvalidMemObject)
}

func (h *HostAPI) ReleaseKernel(kernel KernelID) error {
	return h.release("clReleaseKernel", uintptr(kernel), objKernel, StatusInvalidKernel)
}

func (h *HostAPI) ReleaseProgram(program ProgramID) error {
	return h.release("clReleaseProgram", uintptr(program), objProgram, StatusInvalidProgram)
}

func (h *HostAPI) ReleaseCommandQueue(queue QueueID) error {
	return h.release("clReleaseCommandQueue", uintptr(queue), objQueue, StatusInvalidCommandQueue)
}

func (h *HostAPI) ReleaseContext(ctx ContextID) error {
	return h.release("clReleaseContext", uintptr(ctx), objContext, StatusInvalidContext)
}

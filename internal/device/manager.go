package device

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// State tracks how far the manager has progressed through the resource lifecycle.
type State int

const (
	StateUninitialized State = iota
	StatePlatformsEnumerated
	StateDeviceSelected
	StateContextReady
	StateProgramBuilt
	StateKernelReady
	StateBufferAllocated
	StateDispatching
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StatePlatformsEnumerated:
		return "platforms-enumerated"
	case StateDeviceSelected:
		return "device-selected"
	case StateContextReady:
		return "context-ready"
	case StateProgramBuilt:
		return "program-built"
	case StateKernelReady:
		return "kernel-ready"
	case StateBufferAllocated:
		return "buffer-allocated"
	case StateDispatching:
		return "dispatching"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Selection kinds passed to a Chooser.
const (
	KindPlatform = "platform"
	KindDevice   = "device"
)

// Chooser picks one of several platforms or devices. The returned index need not be
// in range; the manager clamps it.
type Chooser interface {
	Choose(kind string, options []string) (int, error)
}

// ChooserFunc adapts a function to the Chooser interface.
type ChooserFunc func(kind string, options []string) (int, error)

func (f ChooserFunc) Choose(kind string, options []string) (int, error) {
	return f(kind, options)
}

// FixedChooser always answers with the same indices.
type FixedChooser struct {
	Platform int
	Device   int
}

func (c FixedChooser) Choose(kind string, _ []string) (int, error) {
	if kind == KindPlatform {
		return c.Platform, nil
	}
	return c.Device, nil
}

// ClampIndex bounds index to [0, n-1]. Out-of-range operator input is tolerated, not
// rejected.
func ClampIndex(index, n int) int {
	if n <= 0 || index < 0 {
		return 0
	}
	if index > n-1 {
		return n - 1
	}
	return index
}

// Options configures Open.
type Options struct {
	// Source is the program text. Empty selects SumKernelSource.
	Source string
	// Chooser resolves platform and device selection. Nil always picks index 0.
	Chooser Chooser
}

// Manager owns the context, queue, program and kernel for the lifetime of a
// benchmark run, and at most one buffer allocation at a time.
type Manager struct {
	api   API
	state State

	Platform PlatformInfo
	Device   DeviceInfo

	platformID PlatformID
	deviceID   DeviceID
	context    ContextID
	queue      QueueID
	program    ProgramID
	kernel     KernelID

	live *Allocation
}

// Open walks the lifecycle from discovery to a ready kernel. On failure every
// resource created so far is released before the error is returned.
func Open(api API, opts Options) (*Manager, error) {
	if opts.Source == "" {
		opts.Source = SumKernelSource
	}
	if opts.Chooser == nil {
		opts.Chooser = FixedChooser{}
	}

	m := &Manager{api: api}
	if err := m.open(opts); err != nil {
		if cerr := m.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, err
	}
	return m, nil
}

func (m *Manager) open(opts Options) error {
	platforms, err := m.api.PlatformIDs()
	if err != nil {
		return err
	}
	if len(platforms) == 0 {
		return ErrNoPlatforms
	}

	infos := make([]PlatformInfo, len(platforms))
	labels := make([]string, len(platforms))
	for i, id := range platforms {
		info, err := m.api.PlatformInfo(id)
		if err != nil {
			return err
		}
		info.Index = i
		infos[i] = info
		labels[i] = info.Label()
	}
	m.state = StatePlatformsEnumerated

	pi, err := opts.Chooser.Choose(KindPlatform, labels)
	if err != nil {
		return fmt.Errorf("select platform: %w", err)
	}
	pi = ClampIndex(pi, len(platforms))
	m.platformID = platforms[pi]
	m.Platform = infos[pi]

	devices, err := m.api.DeviceIDs(m.platformID)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return fmt.Errorf("%w on platform %q", ErrNoDevices, m.Platform.Name)
	}

	deviceInfos := make([]DeviceInfo, len(devices))
	labels = make([]string, len(devices))
	for i, id := range devices {
		info, err := m.api.DeviceInfo(id)
		if err != nil {
			return err
		}
		info.Index = i
		deviceInfos[i] = info
		labels[i] = info.Name
	}
	m.Platform.Devices = deviceInfos

	di, err := opts.Chooser.Choose(KindDevice, labels)
	if err != nil {
		return fmt.Errorf("select device: %w", err)
	}
	di = ClampIndex(di, len(devices))
	m.deviceID = devices[di]
	m.Device = deviceInfos[di]
	m.state = StateDeviceSelected

	m.context, err = m.api.CreateContext(m.deviceID)
	if err != nil {
		return err
	}
	m.queue, err = m.api.CreateCommandQueue(m.context, m.deviceID)
	if err != nil {
		return err
	}
	m.state = StateContextReady

	m.program, err = m.api.CreateProgram(m.context, opts.Source)
	if err != nil {
		return err
	}
	if err := m.api.BuildProgram(m.program, m.deviceID); err != nil {
		return m.buildError(err, opts.Source)
	}
	m.state = StateProgramBuilt

	kernels, err := m.api.CreateKernels(m.program)
	if err != nil {
		return err
	}
	if len(kernels) != 1 {
		for _, k := range kernels {
			_ = m.api.ReleaseKernel(k)
		}
		return fmt.Errorf("%w: got %d", ErrKernelCount, len(kernels))
	}
	m.kernel = kernels[0]
	m.state = StateKernelReady

	slog.Info("Device backend initialised",
		"platform", m.Platform.Name,
		"vendor", m.Platform.Vendor,
		"device", m.Device.Name,
		"compute_units", m.Device.MaxComputeUnits,
	)

	return nil
}

func (m *Manager) buildError(err error, source string) error {
	code := StatusOf(err)
	if code == StatusSuccess {
		code = StatusBuildProgramFailure
	}
	be := &BuildError{Code: code, BuildStatus: BuildStatusError, Source: source}

	status, log, infoErr := m.api.ProgramBuildInfo(m.program, m.deviceID)
	if infoErr != nil {
		slog.Error("Failed to fetch program build log", "error", infoErr)
		return be
	}
	be.BuildStatus = status
	be.Log = log
	return be
}

// State reports the current lifecycle stage.
func (m *Manager) State() State {
	return m.state
}

// Allocate creates the input buffer (copied from x) and the scalar output buffer for
// one problem size. Only one allocation may be live at a time.
func (m *Manager) Allocate(x []float64) (*Allocation, error) {
	if m.state != StateKernelReady {
		if m.live != nil {
			return nil, ErrAllocationLive
		}
		return nil, fmt.Errorf("%w: allocate in state %s", ErrNotReady, m.state)
	}
	if len(x) == 0 {
		return nil, errors.New("cannot allocate buffers for an empty host array")
	}
	if uint64(len(x)) > math.MaxUint32 {
		return nil, fmt.Errorf("host array of %d elements exceeds kernel size argument", len(x))
	}

	input, err := m.api.CreateBuffer(m.context, len(x)*ElementSize, x)
	if err != nil {
		return nil, err
	}
	output, err := m.api.CreateBuffer(m.context, ElementSize, nil)
	if err != nil {
		if rerr := m.api.ReleaseMem(input); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return nil, err
	}

	a := &Allocation{
		m:      m,
		size:   uint32(len(x)),
		input:  input,
		output: output,
	}
	m.live = a
	m.state = StateBufferAllocated
	return a, nil
}

// Close releases the kernel, program, queue and context, in that order, after any
// live allocation. Calling Close more than once is a no-op.
func (m *Manager) Close() error {
	if m == nil || m.state == StateReleased {
		return nil
	}

	var errs []error
	if m.live != nil {
		errs = append(errs, m.live.Release())
	}
	if m.kernel != 0 {
		errs = append(errs, m.api.ReleaseKernel(m.kernel))
		m.kernel = 0
	}
	if m.program != 0 {
		errs = append(errs, m.api.ReleaseProgram(m.program))
		m.program = 0
	}
	if m.queue != 0 {
		errs = append(errs, m.api.ReleaseCommandQueue(m.queue))
		m.queue = 0
	}
	if m.context != 0 {
		errs = append(errs, m.api.ReleaseContext(m.context))
		m.context = 0
	}
	m.state = StateReleased
	return errors.Join(errs...)
}

// Allocation is the pair of device buffers backing one problem size.
type Allocation struct {
	m        *Manager
	size     uint32
	input    MemID
	output   MemID
	released bool
}

// Len returns the number of elements in the input buffer.
func (a *Allocation) Len() int {
	return int(a.size)
}

// Sum binds the kernel arguments, enqueues one task and blocks on reading the result.
// The blocking read is the synchronisation point that makes a timed call include
// kernel completion.
func (a *Allocation) Sum() (float64, error) {
	if a.released {
		return 0, fmt.Errorf("%w: allocation released", ErrNotReady)
	}

	m := a.m
	m.state = StateDispatching
	defer func() { m.state = StateBufferAllocated }()

	if err := m.api.SetKernelArgMem(m.kernel, 0, a.input); err != nil {
		return 0, err
	}
	if err := m.api.SetKernelArgMem(m.kernel, 1, a.output); err != nil {
		return 0, err
	}
	if err := m.api.SetKernelArgUint(m.kernel, 2, a.size); err != nil {
		return 0, err
	}
	if err := m.api.EnqueueTask(m.queue, m.kernel); err != nil {
		return 0, err
	}
	return m.api.ReadScalar(m.queue, a.output)
}

// Release frees both buffers. It is safe to call more than once.
func (a *Allocation) Release() error {
	if a.released {
		return nil
	}
	a.released = true

	m := a.m
	err := errors.Join(m.api.ReleaseMem(a.input), m.api.ReleaseMem(a.output))
	if m.live == a {
		m.live = nil
		m.state = StateKernelReady
	}
	return err
}

// Enumerate lists every platform with its devices without creating any resources.
func Enumerate(api API) ([]PlatformInfo, error) {
	platforms, err := api.PlatformIDs()
	if err != nil {
		return nil, err
	}

	out := make([]PlatformInfo, 0, len(platforms))
	for i, pid := range platforms {
		info, err := api.PlatformInfo(pid)
		if err != nil {
			return nil, err
		}
		info.Index = i

		devices, err := api.DeviceIDs(pid)
		if err != nil {
			return nil, err
		}
		for j, did := range devices {
			dinfo, err := api.DeviceInfo(did)
			if err != nil {
				return nil, err
			}
			dinfo.Index = j
			info.Devices = append(info.Devices, dinfo)
		}
		out = append(out, info)
	}
	return out, nil
}

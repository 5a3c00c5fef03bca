package device

// DeviceType describes the class of a compute device.
type DeviceType string

const (
	DeviceTypeGPU         DeviceType = "GPU"
	DeviceTypeCPU         DeviceType = "CPU"
	DeviceTypeAccelerator DeviceType = "Accelerator"
	DeviceTypeDefault     DeviceType = "Default"
	DeviceTypeUnknown     DeviceType = "Unknown"
)

// DeviceInfo captures metadata about a compute device.
type DeviceInfo struct {
	Index           int
	Name            string
	Vendor          string
	Version         string
	Type            DeviceType
	MaxComputeUnits uint32
}

// PlatformInfo captures metadata about a platform and, when enumerated, its devices.
type PlatformInfo struct {
	Index   int
	Name    string
	Vendor  string
	Version string
	Devices []DeviceInfo
}

// Label is the one-line description shown when listing platforms.
func (p PlatformInfo) Label() string {
	return p.Vendor + ": " + p.Version
}

// Opaque handles handed out by an API implementation. Zero is never a valid handle.
type (
	PlatformID uintptr
	DeviceID   uintptr
	ContextID  uintptr
	QueueID    uintptr
	ProgramID  uintptr
	KernelID   uintptr
	MemID      uintptr
)

// ElementSize is the size in bytes of one host array element.
const ElementSize = 8

// API is the accelerator boundary the manager drives. Every call reports failures as
// *StatusError so callers can surface the operation and the code.
type API interface {
	PlatformIDs() ([]PlatformID, error)
	PlatformInfo(id PlatformID) (PlatformInfo, error)
	// DeviceIDs returns an empty slice when the platform has no devices.
	DeviceIDs(platform PlatformID) ([]DeviceID, error)
	DeviceInfo(id DeviceID) (DeviceInfo, error)

	CreateContext(device DeviceID) (ContextID, error)
	CreateCommandQueue(ctx ContextID, device DeviceID) (QueueID, error)
	CreateProgram(ctx ContextID, source string) (ProgramID, error)
	BuildProgram(program ProgramID, device DeviceID) error
	ProgramBuildInfo(program ProgramID, device DeviceID) (BuildStatus, string, error)
	CreateKernels(program ProgramID) ([]KernelID, error)

	// CreateBuffer allocates size bytes. A non-nil host slice is copied into the buffer.
	CreateBuffer(ctx ContextID, size int, host []float64) (MemID, error)
	SetKernelArgMem(kernel KernelID, index uint32, mem MemID) error
	SetKernelArgUint(kernel KernelID, index uint32, value uint32) error
	// EnqueueTask submits a single work item.
	EnqueueTask(queue QueueID, kernel KernelID) error
	// ReadScalar blocks until the queue has drained and returns the first element of mem.
	ReadScalar(queue QueueID, mem MemID) (float64, error)

	ReleaseMem(mem MemID) error
	ReleaseKernel(kernel KernelID) error
	ReleaseProgram(program ProgramID) error
	ReleaseCommandQueue(queue QueueID) error
	ReleaseContext(ctx ContextID) error
}

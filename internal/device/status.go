package device

import (
	"errors"
	"fmt"
)

// Status is an accelerator API return code. Values match the OpenCL 1.2 headers.
type Status int32

const (
	StatusSuccess                   Status = 0
	StatusDeviceNotFound            Status = -1
	StatusDeviceNotAvailable        Status = -2
	StatusCompilerNotAvailable      Status = -3
	StatusMemObjectAllocationFailed Status = -4
	StatusOutOfResources            Status = -5
	StatusOutOfHostMemory           Status = -6
	StatusBuildProgramFailure       Status = -11
	StatusInvalidValue              Status = -30
	StatusInvalidPlatform           Status = -32
	StatusInvalidDevice             Status = -33
	StatusInvalidContext            Status = -34
	StatusInvalidCommandQueue       Status = -36
	StatusInvalidMemObject          Status = -38
	StatusInvalidProgram            Status = -44
	StatusInvalidProgramExecutable  Status = -45
	StatusInvalidKernelName         Status = -46
	StatusInvalidKernel             Status = -48
	StatusInvalidArgIndex           Status = -49
	StatusInvalidArgValue           Status = -50
	StatusInvalidKernelArgs         Status = -52
	StatusInvalidOperation          Status = -59
	StatusInvalidBufferSize         Status = -61
)

var statusNames = map[Status]string{
	0:   "CL_SUCCESS",
	-1:  "CL_DEVICE_NOT_FOUND",
	-2:  "CL_DEVICE_NOT_AVAILABLE",
	-3:  "CL_COMPILER_NOT_AVAILABLE",
	-4:  "CL_MEM_OBJECT_ALLOCATION_FAILURE",
	-5:  "CL_OUT_OF_RESOURCES",
	-6:  "CL_OUT_OF_HOST_MEMORY",
	-7:  "CL_PROFILING_INFO_NOT_AVAILABLE",
	-8:  "CL_MEM_COPY_OVERLAP",
	-9:  "CL_IMAGE_FORMAT_MISMATCH",
	-10: "CL_IMAGE_FORMAT_NOT_SUPPORTED",
	-11: "CL_BUILD_PROGRAM_FAILURE",
	-12: "CL_MAP_FAILURE",
	-30: "CL_INVALID_VALUE",
	-31: "CL_INVALID_DEVICE_TYPE",
	-32: "CL_INVALID_PLATFORM",
	-33: "CL_INVALID_DEVICE",
	-34: "CL_INVALID_CONTEXT",
	-35: "CL_INVALID_QUEUE_PROPERTIES",
	-36: "CL_INVALID_COMMAND_QUEUE",
	-37: "CL_INVALID_HOST_PTR",
	-38: "CL_INVALID_MEM_OBJECT",
	-39: "CL_INVALID_IMAGE_FORMAT_DESCRIPTOR",
	-40: "CL_INVALID_IMAGE_SIZE",
	-41: "CL_INVALID_SAMPLER",
	-42: "CL_INVALID_BINARY",
	-43: "CL_INVALID_BUILD_OPTIONS",
	-44: "CL_INVALID_PROGRAM",
	-45: "CL_INVALID_PROGRAM_EXECUTABLE",
	-46: "CL_INVALID_KERNEL_NAME",
	-47: "CL_INVALID_KERNEL_DEFINITION",
	-48: "CL_INVALID_KERNEL",
	-49: "CL_INVALID_ARG_INDEX",
	-50: "CL_INVALID_ARG_VALUE",
	-51: "CL_INVALID_ARG_SIZE",
	-52: "CL_INVALID_KERNEL_ARGS",
	-53: "CL_INVALID_WORK_DIMENSION",
	-54: "CL_INVALID_WORK_GROUP_SIZE",
	-55: "CL_INVALID_WORK_ITEM_SIZE",
	-56: "CL_INVALID_GLOBAL_OFFSET",
	-57: "CL_INVALID_EVENT_WAIT_LIST",
	-58: "CL_INVALID_EVENT",
	-59: "CL_INVALID_OPERATION",
	-60: "CL_INVALID_GL_OBJECT",
	-61: "CL_INVALID_BUFFER_SIZE",
	-62: "CL_INVALID_MIP_LEVEL",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "CL_UNKNOWN_ERROR"
}

// StatusError reports the API call that failed and the code it returned.
type StatusError struct {
	Op   string
	Code Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Code, int32(e.Code))
}

func statusError(op string, code Status) error {
	return &StatusError{Op: op, Code: code}
}

// StatusOf extracts the API code from err, or StatusSuccess when err carries none.
func StatusOf(err error) Status {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return StatusSuccess
}

// BuildStatus mirrors cl_build_status.
type BuildStatus int32

const (
	BuildStatusSuccess    BuildStatus = 0
	BuildStatusNone       BuildStatus = -1
	BuildStatusError      BuildStatus = -2
	BuildStatusInProgress BuildStatus = -3
)

func (s BuildStatus) String() string {
	switch s {
	case BuildStatusSuccess:
		return "CL_BUILD_SUCCESS"
	case BuildStatusNone:
		return "CL_BUILD_NONE"
	case BuildStatusError:
		return "CL_BUILD_ERROR"
	case BuildStatusInProgress:
		return "CL_BUILD_IN_PROGRESS"
	default:
		return fmt.Sprintf("CL_BUILD_STATUS(%d)", int32(s))
	}
}

var (
	// ErrNoPlatforms indicates that the API exposes no platform at all.
	ErrNoPlatforms = errors.New("no compute platforms found")
	// ErrNoDevices indicates that the selected platform exposes no device.
	ErrNoDevices = errors.New("no compute devices found")
	// ErrBuildFailed matches any *BuildError via errors.Is.
	ErrBuildFailed = errors.New("program build failed")
	// ErrKernelCount is returned when the program does not contain exactly one kernel.
	ErrKernelCount = errors.New("program must contain exactly one kernel")
	// ErrAllocationLive is returned by Allocate while a previous allocation is unreleased.
	ErrAllocationLive = errors.New("previous buffer allocation still live")
	// ErrNotReady is returned when the manager is not in a state that allows the call.
	ErrNotReady = errors.New("device manager not ready")
	// ErrNotBuilt indicates the binary was built without OpenCL support.
	ErrNotBuilt = errors.New("opencl support requires building with '-tags gpu'")
)

// BuildError carries the compiler diagnostics of a failed program build.
type BuildError struct {
	Code        Status
	BuildStatus BuildStatus
	Log         string
	Source      string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%v: %s (%d), status %s", ErrBuildFailed, e.Code, int32(e.Code), e.BuildStatus)
}

func (e *BuildError) Is(target error) bool {
	return target == ErrBuildFailed
}

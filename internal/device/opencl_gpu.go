//go:build gpu

package device

/*
#cgo LDFLAGS: -lOpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#include <CL/cl.h>
#include <stdlib.h>

static cl_command_queue dispatchbench_create_queue(cl_context ctx, cl_device_id device, cl_int *status) {
#if CL_TARGET_OPENCL_VERSION >= 200
	const cl_queue_properties props[] = {0};
	return clCreateCommandQueueWithProperties(ctx, device, props, status);
#else
	return clCreateCommandQueue(ctx, device, 0, status);
#endif
}
*/
import "C"

import (
	"unsafe"
)

// openCL drives the system OpenCL ICD loader.
type openCL struct{}

// NewOpenCL returns the OpenCL implementation of API.
func NewOpenCL() (API, error) {
	return openCL{}, nil
}

func (id PlatformID) cl() C.cl_platform_id { return C.cl_platform_id(unsafe.Pointer(uintptr(id))) }
func (id DeviceID) cl() C.cl_device_id     { return C.cl_device_id(unsafe.Pointer(uintptr(id))) }
func (id ContextID) cl() C.cl_context      { return C.cl_context(unsafe.Pointer(uintptr(id))) }
func (id QueueID) cl() C.cl_command_queue  { return C.cl_command_queue(unsafe.Pointer(uintptr(id))) }
func (id ProgramID) cl() C.cl_program      { return C.cl_program(unsafe.Pointer(uintptr(id))) }
func (id KernelID) cl() C.cl_kernel        { return C.cl_kernel(unsafe.Pointer(uintptr(id))) }
func (id MemID) cl() C.cl_mem              { return C.cl_mem(unsafe.Pointer(uintptr(id))) }

func check(op string, status C.cl_int) error {
	if status != C.CL_SUCCESS {
		return statusError(op, Status(status))
	}
	return nil
}

func (openCL) PlatformIDs() ([]PlatformID, error) {
	var count C.cl_uint
	status := C.clGetPlatformIDs(0, nil, &count)
	// Some ICD loaders report "no platforms" as CL_PLATFORM_NOT_FOUND_KHR (-1001).
	if status == -1001 {
		return nil, nil
	}
	if err := check("clGetPlatformIDs(count)", status); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	raw := make([]C.cl_platform_id, int(count))
	if err := check("clGetPlatformIDs(list)", C.clGetPlatformIDs(count, &raw[0], nil)); err != nil {
		return nil, err
	}

	ids := make([]PlatformID, len(raw))
	for i, p := range raw {
		ids[i] = PlatformID(uintptr(unsafe.Pointer(p)))
	}
	return ids, nil
}

func (openCL) PlatformInfo(id PlatformID) (PlatformInfo, error) {
	name, err := getPlatformString(id.cl(), C.CL_PLATFORM_NAME)
	if err != nil {
		return PlatformInfo{}, err
	}
	vendor, err := getPlatformString(id.cl(), C.CL_PLATFORM_VENDOR)
	if err != nil {
		return PlatformInfo{}, err
	}
	version, err := getPlatformString(id.cl(), C.CL_PLATFORM_VERSION)
	if err != nil {
		return PlatformInfo{}, err
	}
	return PlatformInfo{Name: name, Vendor: vendor, Version: version}, nil
}

func (openCL) DeviceIDs(platform PlatformID) ([]DeviceID, error) {
	var count C.cl_uint
	status := C.clGetDeviceIDs(platform.cl(), C.CL_DEVICE_TYPE_ALL, 0, nil, &count)
	if status == C.CL_DEVICE_NOT_FOUND {
		return nil, nil
	}
	if err := check("clGetDeviceIDs(count)", status); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	raw := make([]C.cl_device_id, int(count))
	status = C.clGetDeviceIDs(platform.cl(), C.CL_DEVICE_TYPE_ALL, count, &raw[0], nil)
	if err := check("clGetDeviceIDs(list)", status); err != nil {
		return nil, err
	}

	ids := make([]DeviceID, len(raw))
	for i, d := range raw {
		ids[i] = DeviceID(uintptr(unsafe.Pointer(d)))
	}
	return ids, nil
}

func (openCL) DeviceInfo(id DeviceID) (DeviceInfo, error) {
	dev := id.cl()
	name, err := getDeviceString(dev, C.CL_DEVICE_NAME)
	if err != nil {
		return DeviceInfo{}, err
	}
	vendor, err := getDeviceString(dev, C.CL_DEVICE_VENDOR)
	if err != nil {
		return DeviceInfo{}, err
	}
	version, err := getDeviceString(dev, C.CL_DEVICE_VERSION)
	if err != nil {
		return DeviceInfo{}, err
	}

	var rawType C.cl_device_type
	status := C.clGetDeviceInfo(dev, C.CL_DEVICE_TYPE, C.size_t(unsafe.Sizeof(rawType)), unsafe.Pointer(&rawType), nil)
	if err := check("clGetDeviceInfo(type)", status); err != nil {
		return DeviceInfo{}, err
	}

	var computeUnits C.cl_uint
	status = C.clGetDeviceInfo(dev, C.CL_DEVICE_MAX_COMPUTE_UNITS, C.size_t(unsafe.Sizeof(computeUnits)), unsafe.Pointer(&computeUnits), nil)
	if err := check("clGetDeviceInfo(computeUnits)", status); err != nil {
		return DeviceInfo{}, err
	}

	return DeviceInfo{
		Name:            name,
		Vendor:          vendor,
		Version:         version,
		Type:            mapDeviceType(rawType),
		MaxComputeUnits: uint32(computeUnits),
	}, nil
}

func (openCL) CreateContext(device DeviceID) (ContextID, error) {
	var status C.cl_int
	dev := device.cl()
	ctx := C.clCreateContext(nil, 1, &dev, nil, nil, &status)
	if err := check("clCreateContext", status); err != nil {
		return 0, err
	}
	return ContextID(uintptr(unsafe.Pointer(ctx))), nil
}

func (openCL) CreateCommandQueue(ctx ContextID, device DeviceID) (QueueID, error) {
	var status C.cl_int
	queue := C.dispatchbench_create_queue(ctx.cl(), device.cl(), &status)
	if err := check("clCreateCommandQueue", status); err != nil {
		return 0, err
	}
	return QueueID(uintptr(unsafe.Pointer(queue))), nil
}

func (openCL) CreateProgram(ctx ContextID, source string) (ProgramID, error) {
	src := C.CString(source)
	defer C.free(unsafe.Pointer(src))

	var status C.cl_int
	program := C.clCreateProgramWithSource(ctx.cl(), 1, &src, nil, &status)
	if err := check("clCreateProgramWithSource", status); err != nil {
		return 0, err
	}
	return ProgramID(uintptr(unsafe.Pointer(program))), nil
}

func (openCL) BuildProgram(program ProgramID, device DeviceID) error {
	dev := device.cl()
	return check("clBuildProgram", C.clBuildProgram(program.cl(), 1, &dev, nil, nil, nil))
}

func (openCL) ProgramBuildInfo(program ProgramID, device DeviceID) (BuildStatus, string, error) {
	var status C.cl_build_status
	rc := C.clGetProgramBuildInfo(program.cl(), device.cl(), C.CL_PROGRAM_BUILD_STATUS,
		C.size_t(unsafe.Sizeof(status)), unsafe.Pointer(&status), nil)
	if err := check("clGetProgramBuildInfo(status)", rc); err != nil {
		return BuildStatusNone, "", err
	}

	var logSize C.size_t
	rc = C.clGetProgramBuildInfo(program.cl(), device.cl(), C.CL_PROGRAM_BUILD_LOG, 0, nil, &logSize)
	if err := check("clGetProgramBuildInfo(log size)", rc); err != nil {
		return BuildStatus(status), "", err
	}
	if logSize == 0 {
		return BuildStatus(status), "", nil
	}

	buf := make([]byte, int(logSize))
	rc = C.clGetProgramBuildInfo(program.cl(), device.cl(), C.CL_PROGRAM_BUILD_LOG, logSize, unsafe.Pointer(&buf[0]), nil)
	if err := check("clGetProgramBuildInfo(log)", rc); err != nil {
		return BuildStatus(status), "", err
	}
	return BuildStatus(status), trimNull(buf), nil
}

func (openCL) CreateKernels(program ProgramID) ([]KernelID, error) {
	var count C.cl_uint
	if err := check("clCreateKernelsInProgram(count)", C.clCreateKernelsInProgram(program.cl(), 0, nil, &count)); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	raw := make([]C.cl_kernel, int(count))
	if err := check("clCreateKernelsInProgram", C.clCreateKernelsInProgram(program.cl(), count, &raw[0], nil)); err != nil {
		return nil, err
	}

	ids := make([]KernelID, len(raw))
	for i, k := range raw {
		ids[i] = KernelID(uintptr(unsafe.Pointer(k)))
	}
	return ids, nil
}

func (openCL) CreateBuffer(ctx ContextID, size int, host []float64) (MemID, error) {
	var status C.cl_int
	var mem C.cl_mem
	if host != nil {
		mem = C.clCreateBuffer(ctx.cl(), C.CL_MEM_READ_WRITE|C.CL_MEM_COPY_HOST_PTR, C.size_t(size), unsafe.Pointer(&host[0]), &status)
	} else {
		mem = C.clCreateBuffer(ctx.cl(), C.CL_MEM_READ_WRITE, C.size_t(size), nil, &status)
	}
	if err := check("clCreateBuffer", status); err != nil {
		return 0, err
	}
	return MemID(uintptr(unsafe.Pointer(mem))), nil
}

func (openCL) SetKernelArgMem(kernel KernelID, index uint32, mem MemID) error {
	m := mem.cl()
	return check("clSetKernelArg", C.clSetKernelArg(kernel.cl(), C.cl_uint(index), C.size_t(unsafe.Sizeof(m)), unsafe.Pointer(&m)))
}

func (openCL) SetKernelArgUint(kernel KernelID, index uint32, value uint32) error {
	v := C.cl_uint(value)
	return check("clSetKernelArg", C.clSetKernelArg(kernel.cl(), C.cl_uint(index), C.size_t(unsafe.Sizeof(v)), unsafe.Pointer(&v)))
}

func (openCL) EnqueueTask(queue QueueID, kernel KernelID) error {
	return check("clEnqueueTask", C.clEnqueueTask(queue.cl(), kernel.cl(), 0, nil, nil))
}

func (openCL) ReadScalar(queue QueueID, mem MemID) (float64, error) {
	var v C.double
	status := C.clEnqueueReadBuffer(queue.cl(), mem.cl(), C.CL_TRUE, 0, C.size_t(unsafe.Sizeof(v)), unsafe.Pointer(&v), 0, nil, nil)
	if err := check("clEnqueueReadBuffer", status); err != nil {
		return 0, err
	}
	return float64(v), nil
}

func (openCL) ReleaseMem(mem MemID) error {
	return check("clReleaseMemObject", C.clReleaseMemObject(mem.cl()))
}

func (openCL) ReleaseKernel(kernel KernelID) error {
	return check("clReleaseKernel", C.clReleaseKernel(kernel.cl()))
}

func (openCL) ReleaseProgram(program ProgramID) error {
	return check("clReleaseProgram", C.clReleaseProgram(program.cl()))
}

func (openCL) ReleaseCommandQueue(queue QueueID) error {
	return check("clReleaseCommandQueue", C.clReleaseCommandQueue(queue.cl()))
}

func (openCL) ReleaseContext(ctx ContextID) error {
	return check("clReleaseContext", C.clReleaseContext(ctx.cl()))
}

func getPlatformString(id C.cl_platform_id, param C.cl_platform_info) (string, error) {
	var size C.size_t
	if err := check("clGetPlatformInfo(size)", C.clGetPlatformInfo(id, param, 0, nil, &size)); err != nil {
		return "", err
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	if err := check("clGetPlatformInfo(value)", C.clGetPlatformInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)); err != nil {
		return "", err
	}
	return trimNull(buf), nil
}

func getDeviceString(id C.cl_device_id, param C.cl_device_info) (string, error) {
	var size C.size_t
	if err := check("clGetDeviceInfo(size)", C.clGetDeviceInfo(id, param, 0, nil, &size)); err != nil {
		return "", err
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	if err := check("clGetDeviceInfo(value)", C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)); err != nil {
		return "", err
	}
	return trimNull(buf), nil
}

func mapDeviceType(dt C.cl_device_type) DeviceType {
	switch {
	case dt&C.CL_DEVICE_TYPE_GPU != 0:
		return DeviceTypeGPU
	case dt&C.CL_DEVICE_TYPE_CPU != 0:
		return DeviceTypeCPU
	case dt&C.CL_DEVICE_TYPE_ACCELERATOR != 0:
		return DeviceTypeAccelerator
	case dt&C.CL_DEVICE_TYPE_DEFAULT != 0:
		return DeviceTypeDefault
	default:
		return DeviceTypeUnknown
	}
}

func trimNull(buf []byte) string {
	if len(buf) == 0 {
		return ""
	}
	if buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf)
}

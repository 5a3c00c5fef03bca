package bench

import (
	"fmt"
	"strings"

	"github.com/cwbudde/dispatchbench/internal/device"
)

// Device API implementations selectable at run time.
const (
	DeviceAPIOpenCL = "opencl"
	DeviceAPIHost   = "host"
)

// OpenDeviceAPI returns the accelerator API implementation called name.
func OpenDeviceAPI(name string) (device.API, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DeviceAPIOpenCL:
		api, err := device.NewOpenCL()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return api, nil
	case DeviceAPIHost:
		return device.NewHostAPI(), nil
	default:
		return nil, fmt.Errorf("unknown device API %q", name)
	}
}

type deviceBackend struct {
	manager *device.Manager
}

// NewDevice opens the device resources once for the whole run.
func NewDevice(api device.API, opts device.Options) (Backend, error) {
	m, err := device.Open(api, opts)
	if err != nil {
		return nil, err
	}
	return &deviceBackend{manager: m}, nil
}

func (b *deviceBackend) Name() Kind { return KindDevice }

// Bind allocates the input and output buffers for x.
func (b *deviceBackend) Bind(x []float64) (Call, error) {
	a, err := b.manager.Allocate(x)
	if err != nil {
		return nil, err
	}
	return &deviceCall{alloc: a}, nil
}

func (b *deviceBackend) Close() error {
	return b.manager.Close()
}

type deviceCall struct {
	alloc *device.Allocation
}

func (c *deviceCall) Execute() (float64, error) {
	return c.alloc.Sum()
}

func (c *deviceCall) Release() error {
	return c.alloc.Release()
}

// DeviceManager returns the resource manager behind a device backend.
func DeviceManager(b Backend) (*device.Manager, bool) {
	db, ok := b.(*deviceBackend)
	if !ok {
		return nil, false
	}
	return db.manager, true
}

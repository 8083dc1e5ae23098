package capture

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"bhasha/internal/services"
)

// Device is an exclusive capture resource. Acquire claims it for a single
// session; a busy or missing device fails with ErrDeviceUnavailable.
// Release returns it to the pool and is safe to call more than once.
// OnFragment registers the sink that receives captured media fragments
// while the device is held; a nil sink detaches the previous one.
type Device interface {
	Name() string
	Acquire(ctx context.Context) error
	Release() error
	OnFragment(sink func(fragment []byte))
}

// StubDevice is an in-memory Device for tests. It enforces single-holder
// semantics and can be forced unavailable.
type StubDevice struct {
	name string

	mu          sync.Mutex
	held        bool
	unavailable bool
	acquires    int
	releases    int
	sink        func(fragment []byte)
}

// NewStubDevice returns a stub device with the given name.
func NewStubDevice(name string) *StubDevice {
	if name == "" {
		name = "stub"
	}
	return &StubDevice{name: name}
}

func (d *StubDevice) Name() string { return d.name }

// SetUnavailable forces subsequent acquires to fail.
func (d *StubDevice) SetUnavailable(unavailable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unavailable = unavailable
}

func (d *StubDevice) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unavailable {
		return services.Wrap(services.ErrDeviceUnavailable, "capture", "acquire", d.name+" is offline", nil)
	}
	if d.held {
		return services.Wrap(services.ErrDeviceUnavailable, "capture", "acquire", d.name+" is busy", nil)
	}
	d.held = true
	d.acquires++
	return nil
}

func (d *StubDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.held {
		d.held = false
		d.releases++
	}
	return nil
}

func (d *StubDevice) OnFragment(sink func(fragment []byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = sink
}

// EmitFragment delivers a fragment to the registered sink, simulating the
// hardware pushing captured media. Without a sink the fragment is dropped.
func (d *StubDevice) EmitFragment(fragment []byte) {
	d.mu.Lock()
	sink := d.sink
	d.mu.Unlock()
	if sink != nil {
		sink(fragment)
	}
}

// Held reports whether the device is currently claimed.
func (d *StubDevice) Held() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.held
}

// Releases returns how many times the device has been released.
func (d *StubDevice) Releases() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.releases
}

// LockedDevice claims a capture device through an exclusive lock file, so
// concurrent daemon processes cannot record from the same hardware at once.
type LockedDevice struct {
	name     string
	lockPath string

	mu   sync.Mutex
	lock *flock.Flock
	sink func(fragment []byte)
}

// NewLockedDevice builds a device whose exclusivity is a flock under
// lockDir named after the device.
func NewLockedDevice(name, lockDir string) (*LockedDevice, error) {
	if name == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "capture", "new device", "device name is required", nil)
	}
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "capture", "new device", "create lock dir", err)
	}
	lockName := filepath.Base(filepath.Clean(name)) + ".lock"
	return &LockedDevice{
		name:     name,
		lockPath: filepath.Join(lockDir, lockName),
	}, nil
}

func (d *LockedDevice) Name() string { return d.name }

func (d *LockedDevice) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lock != nil {
		return services.Wrap(services.ErrDeviceUnavailable, "capture", "acquire", d.name+" is busy", nil)
	}
	lock := flock.New(d.lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrDeviceUnavailable, "capture", "acquire", "lock "+d.lockPath, err)
	}
	if !locked {
		return services.Wrap(services.ErrDeviceUnavailable, "capture", "acquire", d.name+" is held by another process", nil)
	}
	d.lock = lock
	return nil
}

func (d *LockedDevice) OnFragment(sink func(fragment []byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = sink
}

// Deliver routes a fragment from the hardware reader to the registered
// sink.
func (d *LockedDevice) Deliver(fragment []byte) {
	d.mu.Lock()
	sink := d.sink
	d.mu.Unlock()
	if sink != nil {
		sink(fragment)
	}
}

func (d *LockedDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lock == nil {
		return nil
	}
	err := d.lock.Unlock()
	d.lock = nil
	if err != nil {
		return services.Wrap(services.ErrDeviceUnavailable, "capture", "release", "unlock "+d.lockPath, err)
	}
	return nil
}

package capture

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"bhasha/internal/logging"
)

// Monitor watches udev netlink events for the sound subsystem and keeps a
// view of whether the configured capture device is present. A failed
// netlink connect is non-fatal; availability then stays at its initial
// value and sessions rely on acquire-time errors.
type Monitor struct {
	device  string
	logger  *slog.Logger
	onEvent func(device string, present bool)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
	present bool
}

// NewMonitor creates a monitor for the named device. onEvent, when set, is
// invoked from the monitor goroutine on every presence change.
func NewMonitor(device string, logger *slog.Logger, onEvent func(device string, present bool)) *Monitor {
	if strings.TrimSpace(device) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Monitor{
		device:  device,
		logger:  logging.WithComponent(logger, "device-monitor"),
		onEvent: onEvent,
		present: true,
	}
}

// Start begins listening for udev events.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("netlink connect failed; device hotplug tracking disabled",
			logging.Error(err))
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.loop(ctx, quit)

	m.logger.Info("device monitor started", logging.String("device", m.device))
	return nil
}

// Stop shuts the monitor down.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
	m.logger.Info("device monitor stopped")
}

// Running reports whether the monitor is listening.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Present reports the last observed device presence.
func (m *Monitor) Present() bool {
	if m == nil {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.present
}

func (m *Monitor) loop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, m.matcher())
	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("device monitor error", logging.Error(err))
		}
	}
}

func (m *Monitor) matcher() netlink.Matcher {
	action := "add|remove|change"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "sound",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(uevent netlink.UEvent) {
	devname := uevent.Env["DEVNAME"]
	if devname == "" {
		return
	}
	if devname != m.device && !strings.HasPrefix(m.device, devname) {
		return
	}

	present := uevent.Action != netlink.REMOVE
	m.mu.Lock()
	changed := m.present != present
	m.present = present
	m.mu.Unlock()
	if !changed {
		return
	}

	m.logger.Info("capture device presence changed",
		logging.String("device", devname),
		logging.Bool("present", present))
	if m.onEvent != nil {
		m.onEvent(devname, present)
	}
}

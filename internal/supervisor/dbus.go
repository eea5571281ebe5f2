package supervisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
)

// DBusConn is the subset of the systemd D-Bus API the manager uses
type DBusConn interface {
	ListUnitsByNamesContext(ctx context.Context, units []string) ([]dbus.UnitStatus, error)
	RestartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	Close()
}

// DBusConnFactory opens a connection to the system bus
type DBusConnFactory func(ctx context.Context) (DBusConn, error)

// NewSystemBus connects to systemd over the system D-Bus
func NewSystemBus(ctx context.Context) (DBusConn, error) {
	conn, err := dbus.NewWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// DBusManager talks to systemd directly over D-Bus
type DBusManager struct {
	conn DBusConn
}

// NewDBusManager opens a connection using newConn
func NewDBusManager(ctx context.Context, newConn DBusConnFactory) (*DBusManager, error) {
	conn, err := newConn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd over dbus: %w", err)
	}
	return &DBusManager{conn: conn}, nil
}

// IsActive reports whether the unit's active state is "active"
func (m *DBusManager) IsActive(ctx context.Context, name string) (bool, error) {
	unit := unitName(name)
	units, err := m.conn.ListUnitsByNamesContext(ctx, []string{unit})
	if err != nil {
		return false, fmt.Errorf("failed to query unit %s: %w", unit, err)
	}
	for _, u := range units {
		if u.Name == unit {
			return u.ActiveState == "active", nil
		}
	}
	return false, nil
}

// Restart queues a restart job and waits for systemd to report its result
func (m *DBusManager) Restart(ctx context.Context, name string) error {
	unit := unitName(name)
	statusCh := make(chan string, 1)
	if _, err := m.conn.RestartUnitContext(ctx, unit, "replace", statusCh); err != nil {
		return fmt.Errorf("dbus restart request for %s failed: %w", unit, err)
	}

	select {
	case status := <-statusCh:
		if status != "done" {
			return fmt.Errorf("failed to restart %s (job result %q)", unit, status)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for restart of %s: %w", unit, ctx.Err())
	}
}

// Close releases the bus connection
func (m *DBusManager) Close() {
	m.conn.Close()
}

// unitName appends ".service" when name carries no unit type suffix
func unitName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		switch name[i+1:] {
		case "service", "socket", "target", "timer", "mount", "path", "scope", "slice":
			return name
		}
	}
	return name + ".service"
}

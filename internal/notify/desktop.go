package notify

import (
	"context"
	"log/slog"

	"github.com/godbus/dbus/v5"

	domainerrors "github.com/add0794/automated-file-mover/internal/errors"
)

const (
	notificationsService   = "org.freedesktop.Notifications"
	notificationsPath      = "/org/freedesktop/Notifications"
	notificationsInterface = "org.freedesktop.Notifications.Notify"

	appName = "watchzone"
	appIcon = "folder-move"
)

// Desktop sends notifications over the session bus using the
// org.freedesktop.Notifications interface.
type Desktop struct {
	conn   *dbus.Conn
	logger *slog.Logger
}

// NewDesktop connects to the session bus. On headless systems the bus is
// usually unavailable, in which case the caller should fall back to running
// without desktop notifications.
func NewDesktop(logger *slog.Logger) (*Desktop, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUnavailable, "session bus unavailable")
	}
	return &Desktop{conn: conn, logger: logger}, nil
}

// Name identifies the sink.
func (d *Desktop) Name() string { return "desktop" }

// Send raises a transient desktop notification.
func (d *Desktop) Send(ctx context.Context, msg Message) error {
	obj := d.conn.Object(notificationsService, dbus.ObjectPath(notificationsPath))

	// Notify(app_name, replaces_id, app_icon, summary, body, actions,
	// hints, expire_timeout) -> id
	call := obj.CallWithContext(ctx, notificationsInterface, 0,
		appName,
		uint32(0),
		appIcon,
		msg.Subject,
		msg.Body,
		[]string{},
		map[string]dbus.Variant{},
		int32(-1), // Server-default expiry
	)
	if call.Err != nil {
		return domainerrors.Wrap(call.Err, domainerrors.CodeUnavailable, "desktop notification failed")
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "unexpected notification reply")
	}

	d.logger.Debug("desktop notification shown", "id", id)
	return nil
}

// Close releases the bus connection.
func (d *Desktop) Close() error {
	return d.conn.Close()
}

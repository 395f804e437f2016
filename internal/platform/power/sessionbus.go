package power

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// busStrategy inhibits through a desktop session-bus service that hands back
// a cookie. Cookies die with the bus connection, so even an unreleased hold
// ends when the process exits.
type busStrategy struct {
	name      string
	dest      string
	path      dbus.ObjectPath
	inhibit   string
	uninhibit string
	args      func(reason string) []interface{}
}

func screenSaverBus() Strategy {
	return &busStrategy{
		name:      "freedesktop-screensaver",
		dest:      "org.freedesktop.ScreenSaver",
		path:      "/org/freedesktop/ScreenSaver",
		inhibit:   "org.freedesktop.ScreenSaver.Inhibit",
		uninhibit: "org.freedesktop.ScreenSaver.UnInhibit",
		args: func(reason string) []interface{} {
			return []interface{}{"chime", reason}
		},
	}
}

func gnomeSessionBus() Strategy {
	// flags 8|4: inhibit idle and suspend.
	return &busStrategy{
		name:      "gnome-session",
		dest:      "org.gnome.SessionManager",
		path:      "/org/gnome/SessionManager",
		inhibit:   "org.gnome.SessionManager.Inhibit",
		uninhibit: "org.gnome.SessionManager.Uninhibit",
		args: func(reason string) []interface{} {
			return []interface{}{"chime", uint32(0), reason, uint32(12)}
		},
	}
}

func (b *busStrategy) Name() string { return b.name }

func (b *busStrategy) Acquire(ctx context.Context, reason string) (func() error, error) {
	conn, err := dbus.SessionBusPrivate()
	if err != nil {
		return nil, fmt.Errorf("session bus: %w", err)
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("session bus auth: %w", err)
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("session bus hello: %w", err)
	}

	var cookie uint32
	obj := conn.Object(b.dest, b.path)
	call := obj.CallWithContext(ctx, b.inhibit, 0, b.args(reason)...)
	if call.Err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", b.inhibit, call.Err)
	}
	if err := call.Store(&cookie); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s result: %w", b.inhibit, err)
	}

	return func() error {
		defer conn.Close()
		return obj.Call(b.uninhibit, 0, cookie).Err
	}, nil
}

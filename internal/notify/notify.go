// Package notify reports the agent's state to systemd via sd_notify.
// Outside a notify-enabled service every call is a no-op.
package notify

import (
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages.
type Notifier struct {
	send func(state string) (bool, error)
	log  *slog.Logger
}

// New returns a Notifier using the service manager's notify socket.
func New(log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		send: func(state string) (bool, error) { return daemon.SdNotify(false, state) },
		log:  log,
	}
}

// Ready tells the service manager startup is complete.
func (n *Notifier) Ready() {
	n.notify(daemon.SdNotifyReady)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(msg string) {
	n.notify("STATUS=" + msg)
}

// Stopping tells the service manager the agent is shutting down.
func (n *Notifier) Stopping() {
	n.notify(daemon.SdNotifyStopping)
}

func (n *Notifier) notify(state string) {
	sent, err := n.send(state)
	if err != nil {
		n.log.Debug("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.log.Debug("sd_notify", "state", state)
	}
}

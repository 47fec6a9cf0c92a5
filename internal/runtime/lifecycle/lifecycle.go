// Package lifecycle reports process state to the service manager.
package lifecycle

import (
	"github.com/coreos/go-systemd/v22/daemon"

	"standupbot/pkg/logx"
)

// StopReason describes why the process is shutting down.
type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
)

// Ready tells systemd (Type=notify units) that startup finished.
// It is a no-op when NOTIFY_SOCKET is not set.
func Ready(log logx.Logger) {
	notify(log, daemon.SdNotifyReady)
}

// Stopping tells systemd that shutdown began.
func Stopping(log logx.Logger, reason StopReason) {
	log.Info("stopping", logx.String("reason", string(reason)))
	notify(log, daemon.SdNotifyStopping)
}

func notify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}

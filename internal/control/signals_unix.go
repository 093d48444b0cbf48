//go:build unix

package control

import (
	"os"
	"syscall"

	"autosend/internal/dispatch"
)

func watched() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2}
}

func mapSignal(s os.Signal) (dispatch.Signal, bool) {
	switch s {
	case os.Interrupt, syscall.SIGTERM:
		return dispatch.SignalStop, true
	case syscall.SIGUSR1:
		return dispatch.SignalPause, true
	case syscall.SIGUSR2:
		return dispatch.SignalResume, true
	default:
		return 0, false
	}
}

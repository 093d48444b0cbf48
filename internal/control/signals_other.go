//go:build !unix

package control

import (
	"os"

	"autosend/internal/dispatch"
)

func watched() []os.Signal { return []os.Signal{os.Interrupt} }

func mapSignal(s os.Signal) (dispatch.Signal, bool) {
	if s == os.Interrupt {
		return dispatch.SignalStop, true
	}
	return 0, false
}

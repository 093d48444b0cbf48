package dispatch

import "fmt"

// Phase is the scheduler's lifecycle position.
//
//	Idle -> WaitingForStart -> Running <-> Paused
//	WaitingForStart -> Stopped
//	Running|Paused -> Stopped | Completed | Failed
//
// Stopped, Completed and Failed are terminal.
type Phase int32

const (
	Idle Phase = iota
	WaitingForStart
	Running
	Paused
	Stopped
	Completed
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case WaitingForStart:
		return "waiting_for_start"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

func (p Phase) Terminal() bool { return p == Stopped || p == Completed || p == Failed }

// State is a point-in-time view of a run.
type State struct {
	Phase        Phase
	CurrentIndex int
	SuccessCount int
}

package events

// Event type identifiers for the kelindar/event dispatcher.
const (
	TypePlayerState uint32 = iota + 1
	TypeSinkWait
)

// Event is the interface all bus events implement.
type Event interface {
	Type() uint32
}

// PlayerState describes where the supervised player process is in its lifecycle.
type PlayerState string

// Player lifecycle states.
const (
	PlayerStarting PlayerState = "starting"
	PlayerRunning  PlayerState = "running"
	PlayerStopped  PlayerState = "stopped"
	PlayerFailed   PlayerState = "failed"
)

// PlayerStateEvent is published on every player lifecycle transition.
type PlayerStateEvent struct {
	State    PlayerState
	PID      int
	ExitCode int
	Command  string
}

// Type implements Event.
func (e PlayerStateEvent) Type() uint32 { return TypePlayerState }

// SinkWaitEvent is published on each Bluetooth sink probe while the
// pre-flight gate is waiting for an audio sink.
type SinkWaitEvent struct {
	Connected bool
	Attempt   int
	Devices   []string
}

// Type implements Event.
func (e SinkWaitEvent) Type() uint32 { return TypeSinkWait }

package interfaces

// AppState represents the coarse lifecycle state of the service process
type AppState string

const (
	StateStarting AppState = "starting"
	StateReady    AppState = "ready"
	StateDraining AppState = "draining"
	StateStopped  AppState = "stopped"
)

// StatusService tracks process-level state and aggregates operational
// counters for the status endpoint.
type StatusService interface {
	// SetState records a state change and announces it on the status room
	SetState(state AppState, detail string)

	// GetState returns the current state
	GetState() AppState

	// SetMetadata stores one operational key/value shown by GetStatus
	SetMetadata(key string, value interface{})

	// GetStatus returns a snapshot of state, metadata and counters
	GetStatus() map[string]interface{}
}

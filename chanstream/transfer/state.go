package transfer

// State is a session's position in the transfer lifecycle.
type State uint8

const (
	StateIdle State = iota
	StateMetaSent
	StateMetaReceived
	StateStreaming
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateMetaSent:
		return "META_SENT"
	case StateMetaReceived:
		return "META_RECEIVED"
	case StateStreaming:
		return "STREAMING"
	case StateCompleted:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// Role distinguishes the two ends of a channel pair.
type Role uint8

const (
	RoleSender Role = iota + 1
	RoleReceiver
)

func (r Role) String() string {
	switch r {
	case RoleSender:
		return "sender"
	case RoleReceiver:
		return "receiver"
	default:
		return "unknown"
	}
}

// Transition is delivered to Config.Observer on every state change.
type Transition struct {
	Role Role
	From State
	To   State
}

// machine is the state bookkeeping shared by Sender and Receiver.
type machine struct {
	role     Role
	state    State
	observer func(Transition)
}

func (m *machine) to(next State) {
	prev := m.state
	m.state = next
	if m.observer != nil && prev != next {
		m.observer(Transition{Role: m.role, From: prev, To: next})
	}
}

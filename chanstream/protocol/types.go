package protocol

type MessageType uint8

const (
	MessageTypeSet   MessageType = 1
	MessageTypeClose MessageType = 2
	MessageTypeOpen  MessageType = 3 // first frame on a stream-based link
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeSet:
		return "SET"
	case MessageTypeClose:
		return "CLOSE"
	case MessageTypeOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

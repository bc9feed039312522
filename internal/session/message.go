package session

// Status is a session's lifecycle state.
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusExited   Status = "exited"
	StatusError    Status = "error"
)

// Terminal reports whether no further operations are valid against a
// session in this state.
func (s Status) Terminal() bool {
	return s == StatusExited || s == StatusError
}

// Envelope is one outbound control message pushed to an attached
// connection. The type strings and field names are a wire contract shared
// with browser clients and must not change.
type Envelope struct {
	Type   string `json:"type"`
	Data   string `json:"data,omitempty"`
	Status Status `json:"status,omitempty"`
	Code   *int   `json:"code,omitempty"`
}

func DataMessage(data string) Envelope {
	return Envelope{Type: "data", Data: data}
}

func SnapshotMessage(data string) Envelope {
	return Envelope{Type: "snapshot", Data: data}
}

func StatusMessage(status Status) Envelope {
	return Envelope{Type: "status", Status: status}
}

func ExitMessage(code int) Envelope {
	return Envelope{Type: "exit", Code: &code}
}

// Conn is the session core's view of an attached transport connection.
// Implementations must tolerate concurrent Send calls.
type Conn interface {
	Send(msg Envelope) error
	Close(reason string)
}

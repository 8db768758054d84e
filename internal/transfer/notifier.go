package transfer

// Direction tells whether a transfer is being sent or received
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

// String returns the string representation of Direction
func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}

// Notifier is the presentation collaborator. Calls are made from the
// pipeline goroutines and must not block for long.
type Notifier interface {
	Progress(dir Direction, fileName string, progress int)
	// Completed is called once per finished transfer; blob is nil for outbound transfers.
	Completed(dir Direction, fileName string, blob *Blob)
	Cancelled(dir Direction, fileName string)
	// Warn reports a non-fatal protocol problem.
	Warn(message string)
	Info(message string)
}

// NopNotifier discards every notification
type NopNotifier struct{}

func (NopNotifier) Progress(Direction, string, int)    {}
func (NopNotifier) Completed(Direction, string, *Blob) {}
func (NopNotifier) Cancelled(Direction, string)        {}
func (NopNotifier) Warn(string)                        {}
func (NopNotifier) Info(string)                        {}

package registry

// Class selects how forcefully a signal asks a process to exit.
type Class int

const (
	// Graceful gives the process an opportunity to exit cleanly.
	Graceful Class = iota
	// Forceful terminates the process unconditionally.
	Forceful
)

// String implements fmt.Stringer.
func (c Class) String() string {
	if c == Forceful {
		return "forceful"
	}
	return "graceful"
}

// Signaler dispatches OS-level signals by process id. The termination
// protocol is platform-agnostic and branches only on SupportsGraceful; the
// one platform-specific implementation is selected at build time.
type Signaler interface {
	// Signal delivers a signal of the given class. Signalling a process
	// that is already gone is success, not an error; errors indicate a
	// failure of the kill facility itself.
	Signal(pid int, class Class) error

	// Alive reports whether a process with the given pid currently exists.
	Alive(pid int) bool

	// SupportsGraceful reports whether the platform distinguishes a
	// graceful signal class from a forceful one.
	SupportsGraceful() bool
}

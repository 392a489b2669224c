package business

// Signal is the result of a save or delete interceptor. Values other than
// the constants below are treated as Abort.
type Signal int

const (
	// Continue lets the operation proceed normally.
	Continue Signal = iota
	// SoftStop lets the remaining interceptors of the chain run but skips the
	// persistence step (before chains) and makes the operation report failure.
	SoftStop
	// Abort stops the whole operation immediately and reports failure.
	Abort
)

func (s Signal) String() string {
	switch s {
	case Continue:
		return "continue"
	case SoftStop:
		return "soft-stop"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

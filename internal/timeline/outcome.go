package timeline

import "errors"

// Outcome reports whether a mutation applied and, if not, why.
type Outcome int

const (
	Applied Outcome = iota
	RejectedAtBoundary
	RejectedTooCloseToNeighbor
	NotFound
	RejectedNoVideo
)

var (
	ErrAtBoundary = errors.New("cut point too close to video boundary")
	ErrTooClose   = errors.New("cut point too close to an existing cut point")
	ErrNotFound   = errors.New("not found")
	ErrNoVideo    = errors.New("no video loaded")
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case RejectedAtBoundary:
		return "rejected_at_boundary"
	case RejectedTooCloseToNeighbor:
		return "rejected_too_close"
	case NotFound:
		return "not_found"
	case RejectedNoVideo:
		return "rejected_no_video"
	default:
		return "unknown"
	}
}

// Ok reports whether the mutation applied.
func (o Outcome) Ok() bool {
	return o == Applied
}

// Err maps a rejection to its sentinel error. Applied returns nil.
func (o Outcome) Err() error {
	switch o {
	case Applied:
		return nil
	case RejectedAtBoundary:
		return ErrAtBoundary
	case RejectedTooCloseToNeighbor:
		return ErrTooClose
	case NotFound:
		return ErrNotFound
	case RejectedNoVideo:
		return ErrNoVideo
	default:
		return errors.New("unknown outcome")
	}
}

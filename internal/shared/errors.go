package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")

	// Store and collaborator errors
	ErrNotFound         = fmt.Errorf("record not found")
	ErrDuplicate        = fmt.Errorf("record already exists")
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrUserNotFound     = fmt.Errorf("user not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)

// Kind classifies a per-entity failure for cycle-level reporting.
//
// Only [KindTransient] and [KindNotFound] are continuable without surfacing;
// all other kinds must appear in the cycle report.
type Kind int

const (
	KindNone Kind = iota
	KindTransient
	KindNotFound
	KindPartialBatch
	KindMismatch
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not_found"
	case KindPartialBatch:
		return "partial_batch"
	case KindMismatch:
		return "mismatch"
	case KindFatal:
		return "fatal"
	default:
		return ""
	}
}

// Continuable reports whether a failure of this kind may be skipped silently
// after logging, leaving the entity for the next scheduled cycle.
func (k Kind) Continuable() bool {
	return k == KindNone || k == KindTransient || k == KindNotFound
}

package tenant

// AuthCode classifies an authorization failure.
type AuthCode int

const (
	// Unauthorized means the token was missing, malformed, or expired.
	Unauthorized AuthCode = iota

	// Forbidden means the token was valid but names a tenant this
	// deployment does not know.
	Forbidden
)

// AuthError is returned when a request cannot be authenticated to a tenant.
// It is always surfaced to the caller and never recovered locally.
type AuthError struct {
	Code   AuthCode
	Reason string
}

func (e AuthError) Error() string {
	switch e.Code {
	case Forbidden:
		return "forbidden: " + e.Reason
	default:
		return "unauthorized: " + e.Reason
	}
}

package contextkeys

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// OrgID is the context key for the authenticated organization's ID.
	OrgID contextKey = "orgID"
	// UserEmail is the context key for the authenticated user's email.
	UserEmail contextKey = "userEmail"
	// UserRole is the context key for the authenticated user's role.
	UserRole contextKey = "userRole"
)

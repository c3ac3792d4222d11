package middleware

type contextKey string

// Keys set on the gin context by AuthMiddleware. The logger reads "user_id"
// directly, so the values must stay in sync with it.
const (
	UserIDKey    contextKey = "user_id"
	UserEmailKey contextKey = "user_email"
)

// UserID returns the authenticated caller, or "" on public routes.
func UserID(c interface{ GetString(string) string }) string {
	return c.GetString(string(UserIDKey))
}

func UserEmail(c interface{ GetString(string) string }) string {
	return c.GetString(string(UserEmailKey))
}

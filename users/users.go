package users

// UserSummary is the identity payload returned by the auth endpoints. It is
// treated as opaque: the client never mutates individual fields, only replaces
// the whole object after a profile update or a /auth/me fetch.
type UserSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

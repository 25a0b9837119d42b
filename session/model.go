package session

// Status is the resolved-or-not authentication status.
type Status uint8

const (
	// StatusUnknown means the initial session check has not completed.
	StatusUnknown Status = iota
	// StatusAuthenticated means a user is logged in.
	StatusAuthenticated
	// StatusUnauthenticated means no user is logged in.
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// User is the identity returned by the login, refresh and identity endpoints.
type User struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// State is an immutable view of the session. User is non-nil exactly when
// Status is StatusAuthenticated.
type State struct {
	Status Status
	User   *User
}

// Resolved reports whether the state is no longer StatusUnknown.
func (s State) Resolved() bool {
	return s.Status != StatusUnknown
}

// Authenticated reports whether a user is logged in.
func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}

// Credentials are the client-held tokens for the bearer scheme. Under the
// cookie scheme they stay empty.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	UserID       uint64
	IssuedAt     int64
	ExpiresAt    int64
}

func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// LoginRequest is the body of the login call.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

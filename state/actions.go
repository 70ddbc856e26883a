package state

// Action is a request to change State. The set of actions is closed: only the
// types in this file implement it.
type Action interface {
	Kind() string
	action()
}

// AuthStart marks the beginning of a login or session check.
type AuthStart struct{}

// AuthSuccess records an authenticated user.
type AuthSuccess struct {
	User *User
}

// AuthFailure records a failed authentication attempt.
type AuthFailure struct {
	Message string
}

// AuthLogout resets the state to Initial.
type AuthLogout struct{}

// ClearError drops the current error.
type ClearError struct{}

// SetLoading sets the loading flag.
type SetLoading struct {
	Value bool
}

// SetTokenExpiring sets the token-expiring-soon flag.
type SetTokenExpiring struct {
	Value bool
}

func (AuthStart) Kind() string        { return "AUTH_START" }
func (AuthSuccess) Kind() string      { return "AUTH_SUCCESS" }
func (AuthFailure) Kind() string      { return "AUTH_FAILURE" }
func (AuthLogout) Kind() string       { return "AUTH_LOGOUT" }
func (ClearError) Kind() string       { return "CLEAR_ERROR" }
func (SetLoading) Kind() string       { return "SET_LOADING" }
func (SetTokenExpiring) Kind() string { return "SET_TOKEN_EXPIRING" }

func (AuthStart) action()        {}
func (AuthSuccess) action()      {}
func (AuthFailure) action()      {}
func (AuthLogout) action()       {}
func (ClearError) action()       {}
func (SetLoading) action()       {}
func (SetTokenExpiring) action() {}

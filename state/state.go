package state

import "maps"

// User is the profile of the signed-in user as returned by the API.
type User struct {
	ID         string         `json:"id"`
	Email      string         `json:"email,omitempty"`
	Name       string         `json:"name,omitempty"`
	Role       string         `json:"role,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Attributes = maps.Clone(u.Attributes)
	return &out
}

// State is the session state. An empty Error means no error.
type State struct {
	User              *User
	IsAuthenticated   bool
	IsLoading         bool
	Error             string
	TokenExpiringSoon bool
}

// Initial returns the unauthenticated, idle state.
func Initial() State {
	return State{}
}

func (s State) clone() State {
	s.User = s.User.Clone()
	return s
}

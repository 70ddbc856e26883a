package state

// Reduce returns the state that follows s after a. It never mutates s and
// returns s unchanged for a nil action.
func Reduce(s State, a Action) State {
	next := s.clone()

	switch a := a.(type) {
	case AuthStart:
		next.IsLoading = true
		next.Error = ""
	case AuthSuccess:
		next.IsAuthenticated = true
		next.User = a.User.Clone()
		next.IsLoading = false
		next.TokenExpiringSoon = false
	case AuthFailure:
		next.IsAuthenticated = false
		next.User = nil
		next.Error = a.Message
		next.IsLoading = false
	case AuthLogout:
		next = Initial()
	case ClearError:
		next.Error = ""
	case SetLoading:
		next.IsLoading = a.Value
	case SetTokenExpiring:
		next.TokenExpiringSoon = a.Value
	}

	return next
}

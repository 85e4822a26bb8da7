package model

// Caller identifies who issued a request: either nobody (Anonymous) or a
// resolved account (Registered). Code that behaves differently for the two
// switches on the concrete type instead of nil-checking a *User.
type Caller interface {
	isCaller()
}

// Anonymous is a caller that presented no token at all.
type Anonymous struct{}

// Registered is a caller whose token resolved to a stored user.
type Registered struct {
	User *User
}

func (Anonymous) isCaller()  {}
func (Registered) isCaller() {}

// CallerOf wraps an optionally resolved user.
func CallerOf(u *User) Caller {
	if u == nil {
		return Anonymous{}
	}
	return Registered{User: u}
}

package userbase

import "context"

// UserPass is the static in-memory user base. Password comparison is
// direct byte equality — a deliberate, documented simplification; a
// reimplementation should hash, but doing so changes the config schema.
type UserPass struct {
	users map[string]string
}

// NewUserPass builds a UserPass from an ordered list of (name, password)
// pairs. When a name repeats, the last binding wins.
func NewUserPass(pairs [][2]string) *UserPass {
	users := make(map[string]string, len(pairs))
	for _, p := range pairs {
		users[p[0]] = p[1]
	}
	return &UserPass{users: users}
}

func (u *UserPass) Lookup(_ context.Context, user, password string) (LookupResult, error) {
	expected, ok := u.users[user]
	if !ok {
		return noSuchUser(), nil
	}
	if password != expected {
		return incorrectPassword(), nil
	}
	return success(), nil
}

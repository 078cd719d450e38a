// Package userbase implements the credential verification backends:
// a static in-memory map and an LDAP directory.
package userbase

import "context"

// Outcome is the tagged result of a lookup.
type Outcome int

const (
	Success Outcome = iota
	NoSuchUser
	IncorrectPassword
	Other
)

// LookupResult is a UserBase outcome: Success, NoSuchUser,
// IncorrectPassword, or Other carrying a detail message.
type LookupResult struct {
	Outcome Outcome
	Detail  string // set only for Other
}

func success() LookupResult           { return LookupResult{Outcome: Success} }
func noSuchUser() LookupResult        { return LookupResult{Outcome: NoSuchUser} }
func incorrectPassword() LookupResult { return LookupResult{Outcome: IncorrectPassword} }
func other(detail string) LookupResult {
	return LookupResult{Outcome: Other, Detail: detail}
}

// UserBase verifies a username/password pair against a credential store.
// Transport-level failures are returned as errors, not as a LookupResult;
// callers treat an error the same as an authentication failure.
type UserBase interface {
	Lookup(ctx context.Context, user, password string) (LookupResult, error)
}

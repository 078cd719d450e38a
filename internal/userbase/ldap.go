package userbase

import (
	"context"
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// LDAP resolves a username to a DN in a directory, then simple-binds as
// that DN with the supplied password. Every lookup opens a fresh
// connection — the shared-handle variant would serialize logins behind a
// mutex and risks deadlock if the library itself suspends while holding it.
type LDAP struct {
	addr     string // ldap://host:port or ldaps://host:port
	userAttr string
	baseDN   string
}

// NewLDAP builds an LDAP user base. userAttr defaults to "uid" if empty.
func NewLDAP(addr, baseDN, userAttr string) *LDAP {
	if userAttr == "" {
		userAttr = "uid"
	}
	return &LDAP{addr: addr, userAttr: userAttr, baseDN: baseDN}
}

func (l *LDAP) Lookup(ctx context.Context, user, password string) (LookupResult, error) {
	conn, err := ldap.DialURL(l.addr)
	if err != nil {
		return LookupResult{}, fmt.Errorf("connecting to ldap directory: %w", err)
	}
	defer conn.Close()

	searchReq := ldap.NewSearchRequest(
		l.baseDN,
		ldap.ScopeSingleLevel, ldap.NeverDerefAliases, 0, 0, false,
		fmt.Sprintf("(%s=%s)", l.userAttr, ldap.EscapeFilter(user)),
		[]string{"dn"},
		nil,
	)
	res, err := conn.Search(searchReq)
	if err != nil {
		return LookupResult{}, fmt.Errorf("searching ldap directory: %w", err)
	}

	switch len(res.Entries) {
	case 0:
		return noSuchUser(), nil
	default:
		if len(res.Entries) > 1 {
			return other("user lookup returned more than one user"), nil
		}
	}

	userDN := res.Entries[0].DN
	return bindResult(conn.Bind(userDN, password)), nil
}

// bindResult maps a simple-bind error to the LookupResult the spec assigns
// to each LDAP result code: 0 success, 49 incorrect password, anything
// else Other(detail).
func bindResult(err error) LookupResult {
	if err == nil {
		return success()
	}
	if ldapErr, ok := err.(*ldap.Error); ok {
		switch ldapErr.ResultCode {
		case ldap.LDAPResultInvalidCredentials:
			return incorrectPassword()
		default:
			return other(fmt.Sprintf("error from LDAP bind: %s", ldapErr.Error()))
		}
	}
	return other(fmt.Sprintf("error from LDAP bind: %s", err.Error()))
}

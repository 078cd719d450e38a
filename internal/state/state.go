// Package state builds and atomically publishes the process-wide live
// configuration: compiled filter chain, session keys, and HTTP client.
package state

import (
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/sealproxy/sealproxy/internal/config"
	"github.com/sealproxy/sealproxy/internal/filter"
	"github.com/sealproxy/sealproxy/internal/forward"
	"github.com/sealproxy/sealproxy/internal/session"
	"github.com/sealproxy/sealproxy/internal/userbase"
)

// State is one immutable, fully-constructed snapshot of the proxy's
// configuration. It is never mutated after FromConfig returns it; reload
// builds a new State and swaps the pointer.
type State struct {
	Config  *config.Config
	Runtime *filter.Runtime
	Chain   []filter.Filter
}

// live is the atomically-swappable global pointer every request reads
// from. Requests that are already in flight continue to hold whatever
// *State they observed; the old value is released once its last
// reference drops, same as any other garbage-collected value.
var live atomic.Pointer[State]

// Load returns the current live state. Never nil after Init succeeds.
func Load() *State { return live.Load() }

// store atomically publishes s as the new live state.
func store(s *State) { live.Store(s) }

// FromConfig builds a new State from cfg: parses the target URL, loads
// session keys, constructs each configured user base, and compiles the
// filter chain in configuration order.
func FromConfig(cfg *config.Config) (*State, error) {
	target, err := url.Parse(cfg.Target.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing target url: %w", err)
	}

	keys, err := session.LoadKeys(cfg.Session.PrivateKey, cfg.Session.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("loading session keys: %w", err)
	}

	chain := make([]filter.Filter, 0, len(cfg.Filters))
	for i, fc := range cfg.Filters {
		f, err := buildFilter(fc, keys)
		if err != nil {
			return nil, fmt.Errorf("filters[%d]: %w", i, err)
		}
		chain = append(chain, f)
	}

	runtime := &filter.Runtime{
		Target:       target,
		Client:       forward.NewClient(),
		SigningKey:   keys.Private,
		CookieSecure: cfg.Server.TLS != nil,
	}

	return &State{Config: cfg, Runtime: runtime, Chain: chain}, nil
}

func buildFilter(fc config.Filter, keys *session.Keys) (filter.Filter, error) {
	switch fc.Kind {
	case "anonymous":
		return filter.NewAnonymous(fc.Paths, fc.NotPaths), nil
	case "redirect":
		return filter.NewRedirect(fc.Location, fc.WithReturn, fc.Paths, fc.NotPaths), nil
	case "basic":
		ub, err := buildUserBase(fc.UserBase)
		if err != nil {
			return nil, err
		}
		return filter.NewBasic(ub), nil
	case "cookie_session":
		return filter.NewCookieSession(keys.Public), nil
	case "form_login":
		ub, err := buildUserBase(fc.UserBase)
		if err != nil {
			return nil, err
		}
		return filter.NewFormLogin(fc.Path, fc.SuccessRedirect, fc.FailureRedirect, ub), nil
	default:
		return nil, fmt.Errorf("unknown filter kind %q", fc.Kind)
	}
}

func buildUserBase(ub *config.UserBase) (userbase.UserBase, error) {
	if ub == nil {
		return nil, fmt.Errorf("user_base is required")
	}
	switch ub.Kind {
	case "user_pass":
		pairs := make([][2]string, len(ub.Users))
		for i, u := range ub.Users {
			pairs[i] = [2]string{u.Name, u.Password}
		}
		return userbase.NewUserPass(pairs), nil
	case "ldap":
		return userbase.NewLDAP(ub.URL, ub.BaseDN, ub.UserAttr), nil
	default:
		return nil, fmt.Errorf("unknown user_base kind %q", ub.Kind)
	}
}

// Init loads the config at path, builds the initial State, and publishes
// it. Callers should follow with StartReload to keep it current.
func Init(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	s, err := FromConfig(cfg)
	if err != nil {
		return err
	}
	store(s)
	return nil
}

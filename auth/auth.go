package auth

import (
	"github.com/lightningnetwork/corerpc/rpcerr"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Kind identifies how a Selector authenticates.
type Kind uint8

const (
	// KindNone selects no credentials.
	KindNone Kind = iota

	// KindUserPass selects an explicit username and password.
	KindUserPass

	// KindCookieFile selects a cookie file written by the node.
	KindCookieFile
)

// String returns a human readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUserPass:
		return "userpass"
	case KindCookieFile:
		return "cookie"
	default:
		return "unknown"
	}
}

// Selector is an immutable choice of authentication method. The zero value
// selects no credentials.
type Selector struct {
	kind       Kind
	user       string
	pass       string
	cookiePath string
}

// None returns a selector without credentials.
func None() Selector {
	return Selector{kind: KindNone}
}

// UserPass returns a selector for an explicit username and password.
func UserPass(user, pass string) Selector {
	return Selector{kind: KindUserPass, user: user, pass: pass}
}

// CookieFile returns a selector for the cookie file at path.
func CookieFile(path string) Selector {
	return Selector{kind: KindCookieFile, cookiePath: path}
}

// Kind returns the authentication method of the selector.
func (s Selector) Kind() Kind {
	return s.kind
}

// CookiePath returns the cookie file path for KindCookieFile selectors.
func (s Selector) CookiePath() fn.Option[string] {
	if s.kind != KindCookieFile {
		return fn.None[string]()
	}

	return fn.Some(s.cookiePath)
}

// UserPass resolves the selector into the username and password required by
// the transport. KindNone resolves to two empty options, a cookie file is
// read once and split at the first colon of its first line.
func (s Selector) UserPass() (fn.Option[string], fn.Option[string], error) {
	switch s.kind {
	case KindNone:
		return fn.None[string](), fn.None[string](), nil

	case KindUserPass:
		return fn.Some(s.user), fn.Some(s.pass), nil

	case KindCookieFile:
		user, pass, err := ReadCookie(s.cookiePath)
		if err != nil {
			return fn.None[string](), fn.None[string](), err
		}

		return fn.Some(user), fn.Some(pass), nil

	default:
		return fn.None[string](), fn.None[string](),
			rpcerr.Newf(rpcerr.KindMissingAuthentication,
				"unknown selector kind %d", s.kind)
	}
}

// Policy states whether a deployment requires credentials.
type Policy uint8

const (
	// PolicyRequired rejects a KindNone selector. It is the zero value so
	// that an unset policy fails closed.
	PolicyRequired Policy = iota

	// PolicyOptional allows connecting without credentials.
	PolicyOptional
)

// String returns a human readable name for the policy.
func (p Policy) String() string {
	switch p {
	case PolicyRequired:
		return "required"
	case PolicyOptional:
		return "optional"
	default:
		return "unknown"
	}
}

// Strategy selects how the resolved credentials are consumed by a transport
// builder.
type Strategy uint8

const (
	// StrategyUserPass resolves a username and password pair. A cookie
	// file is split at the first colon of its first line.
	StrategyUserPass Strategy = iota

	// StrategyToken resolves a single opaque token. A cookie file is read
	// whole and trimmed; explicit credentials are joined as user:pass.
	StrategyToken
)

// String returns a human readable name for the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyUserPass:
		return "userpass"
	case StrategyToken:
		return "token"
	default:
		return "unknown"
	}
}

// Credentials is the resolved form of a Selector. For StrategyUserPass the
// User and Pass options are set, for StrategyToken only Token is. All options
// are empty when no credentials were selected.
type Credentials struct {
	User  fn.Option[string]
	Pass  fn.Option[string]
	Token fn.Option[string]
}

// IsEmpty returns true if no credential of any form was resolved.
func (c *Credentials) IsEmpty() bool {
	return c.User.IsNone() && c.Pass.IsNone() && c.Token.IsNone()
}

// Resolve turns sel into credentials for a transport consuming them with the
// given strategy. A KindNone selector fails with KindMissingAuthentication
// under PolicyRequired before any file is touched.
func Resolve(sel Selector, policy Policy, strategy Strategy) (*Credentials,
	error) {

	if sel.kind == KindNone {
		if policy == PolicyRequired {
			return nil, rpcerr.ErrMissingAuthentication
		}

		return &Credentials{}, nil
	}

	switch strategy {
	case StrategyUserPass:
		user, pass, err := sel.UserPass()
		if err != nil {
			return nil, err
		}

		return &Credentials{User: user, Pass: pass}, nil

	case StrategyToken:
		var token string
		switch sel.kind {
		case KindUserPass:
			token = sel.user + ":" + sel.pass

		case KindCookieFile:
			var err error
			token, err = ReadCookieToken(sel.cookiePath)
			if err != nil {
				return nil, err
			}
		}

		return &Credentials{Token: fn.Some(token)}, nil

	default:
		return nil, rpcerr.Newf(rpcerr.KindMissingAuthentication,
			"unknown credential strategy %d", strategy)
	}
}

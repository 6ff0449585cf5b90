// Package transport holds the endpoint and auth plumbing shared by the
// smart-HTTP wire protocol:
// ref discovery, fetch negotiation and packfile transfer, and push with
// report-status, all layered on the pkt-line/packp codecs.
package transport

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/kevinburke/ssh_config"
)

var (
	ErrUnsupportedTransport = errors.New("transport: unsupported transport scheme")
	ErrInvalidEndpoint      = errors.New("transport: invalid endpoint")
	ErrEmptyRemoteRepository = errors.New("transport: remote repository is empty")
)

// UnknownTransportError is returned when an endpoint's scheme cannot be
// served without a caller-enabled rewrite (e.g. SSH)
type UnknownTransportError struct {
	Endpoint string
}

func (e *UnknownTransportError) Error() string {
	return fmt.Sprintf("transport: unknown transport for endpoint %q", e.Endpoint)
}

// Endpoint describes the remote a transport connects to: scheme, host,
// port, path and any embedded userinfo.
type Endpoint struct {
	Protocol string
	User     string
	Password string
	Host     string
	Port     int
	Path     string
}

// NewEndpoint parses a remote URL. It accepts plain HTTP(S) URLs, and
// "git@host:path"/"ssh://user@host/path" forms which are rewritten to an
// HTTPS endpoint only when rewriteSSH is true; otherwise they fail with an
// *UnknownTransportError. Any other scheme fails with
// ErrUnsupportedTransport.
func NewEndpoint(raw string, rewriteSSH bool) (*Endpoint, error) {
	if !strings.Contains(raw, "://") {
		if m := scpLikeRegexp.FindStringSubmatch(raw); m != nil {
			if !rewriteSSH {
				return nil, &UnknownTransportError{Endpoint: raw}
			}
			host, user := resolveSSHHost(m[2], m[1])
			return &Endpoint{
				Protocol: "https",
				User:     user,
				Host:     host,
				Path:     "/" + strings.TrimPrefix(m[3], "/"),
			}, nil
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}

	switch u.Scheme {
	case "http", "https":
	case "ssh":
		if !rewriteSSH {
			return nil, &UnknownTransportError{Endpoint: raw}
		}
		u.Scheme = "https"
		if host, _ := resolveSSHHost(u.Hostname(), ""); host != u.Hostname() {
			u.Host = host
		}
	default:
		return nil, ErrUnsupportedTransport
	}

	ep := &Endpoint{Protocol: u.Scheme, Host: u.Hostname(), Path: u.Path}
	if u.User != nil {
		ep.User = u.User.Username()
		ep.Password, _ = u.User.Password()
	}
	if p := u.Port(); p != "" {
		fmt.Sscanf(p, "%d", &ep.Port)
	}
	return ep, nil
}

// resolveSSHHost maps an ssh-config host alias to its configured
// HostName (and User, when the URL carries none), the same lookup an SSH
// dialer performs, so a rewritten "git@alias:path" URL lands on the real
// host rather than the alias.
func resolveSSHHost(host, user string) (string, string) {
	if hn := ssh_config.Get(host, "HostName"); hn != "" {
		host = hn
	}
	if user == "" {
		user = ssh_config.Get(host, "User")
	}
	return host, user
}

// String renders the endpoint back to a URL.
func (e *Endpoint) String() string {
	host := e.Host
	if e.Port != 0 {
		host = fmt.Sprintf("%s:%d", e.Host, e.Port)
	}
	return fmt.Sprintf("%s://%s%s", e.Protocol, host, e.Path)
}

// AuthMethod supplies per-request credentials; a nil AuthMethod means
// anonymous access.
type AuthMethod interface {
	// Name identifies the scheme for diagnostics ("basic", "bearer", ...).
	Name() string
	// SetAuth mutates the outgoing request's Authorization-bearing header
	// via the caller-supplied setter (decoupling this package from any
	// concrete HTTP request type).
	SetAuth(setHeader func(key, value string))
}

// BasicAuth is username/password HTTP basic authentication.
type BasicAuth struct {
	Username string
	Password string
}

func (a *BasicAuth) Name() string { return "http-basic-auth" }
func (a *BasicAuth) SetAuth(setHeader func(key, value string)) {
	setHeader("Authorization", basicAuthHeader(a.Username, a.Password))
}

// TokenAuth is a bearer-token credential.
type TokenAuth struct {
	Token string
}

func (a *TokenAuth) Name() string { return "http-token-auth" }
func (a *TokenAuth) SetAuth(setHeader func(key, value string)) {
	setHeader("Authorization", "Bearer "+a.Token)
}

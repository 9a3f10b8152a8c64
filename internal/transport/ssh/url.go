package ssh

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/fenilsonani/vcs-remote/internal/transport"
)

const (
	schemePrefix = "ssh://"
	defaultUser  = "git"
	defaultPort  = "22"
)

// urlParts is the connection-relevant portion of a remote URL. Password is
// only ever populated from the userinfo of an ssh:// URL; scp-like URLs
// cannot carry one.
type urlParts struct {
	Host     string
	Port     string
	User     string
	Password string
	HasPass  bool
}

// parseURL accepts the two remote URL forms the SSH transport understands:
//
//	ssh://[user[:pass]@]host[:port]/path
//	[user@]host:path
func parseURL(rawurl string) (urlParts, error) {
	if strings.HasPrefix(rawurl, schemePrefix) {
		return parseSchemeURL(rawurl)
	}
	return parseScpURL(rawurl)
}

func parseSchemeURL(rawurl string) (urlParts, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return urlParts{}, fmt.Errorf("%w: %v", transport.ErrMalformedURL, err)
	}
	if u.Hostname() == "" {
		return urlParts{}, fmt.Errorf("%w: no host in %q", transport.ErrMalformedURL, rawurl)
	}

	parts := urlParts{
		Host: u.Hostname(),
		Port: u.Port(),
		User: u.User.Username(),
	}
	if parts.Port == "" {
		parts.Port = defaultPort
	}
	parts.Password, parts.HasPass = u.User.Password()
	return parts, nil
}

// parseScpURL splits "user@host:path" shorthand. The ':' check runs first so
// that a URL with '@' but no ':' fails as malformed rather than yielding a
// bogus host.
func parseScpURL(rawurl string) (urlParts, error) {
	colon := strings.Index(rawurl, ":")
	if colon < 0 {
		return urlParts{}, fmt.Errorf("%w: missing ':' in %q", transport.ErrMalformedURL, rawurl)
	}

	parts := urlParts{User: defaultUser, Port: defaultPort}
	authority := rawurl[:colon]
	if at := strings.Index(authority, "@"); at >= 0 {
		parts.User = authority[:at]
		parts.Host = authority[at+1:]
	} else {
		parts.Host = authority
	}
	return parts, nil
}

// genCommand builds the remote invocation for a service command, e.g.
//
//	git-upload-pack 'user/repo.git'
//
// The repository path is everything after the authority: past the first '/'
// for ssh:// URLs, past the first ':' for scp-like URLs. The path is quoted
// verbatim; the remote side is responsible for interpreting it.
func genCommand(cmd, rawurl string) (string, error) {
	var repo string
	if strings.HasPrefix(rawurl, schemePrefix) {
		rest := rawurl[len(schemePrefix):]
		slash := strings.Index(rest, "/")
		if slash < 0 {
			return "", fmt.Errorf("%w: no repository path in %q", transport.ErrMalformedURL, rawurl)
		}
		repo = rest[slash+1:]
	} else {
		colon := strings.Index(rawurl, ":")
		if colon < 0 {
			return "", fmt.Errorf("%w: no repository path in %q", transport.ErrMalformedURL, rawurl)
		}
		repo = rawurl[colon+1:]
	}

	return fmt.Sprintf("%s '%s'", cmd, repo), nil
}

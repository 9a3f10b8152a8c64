// Package ssh implements the smart-protocol subtransport for SSH remotes.
//
// Each listing action dials the remote host, authenticates, and opens one
// exec channel. The remote service command (git-upload-pack or
// git-receive-pack) is not started until the first read or write on the
// stream, so a stream that is opened and immediately closed never runs
// anything remotely.
package ssh

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/fenilsonani/vcs-remote/internal/transport"
)

const (
	cmdUploadPack  = "git-upload-pack"
	cmdReceivePack = "git-receive-pack"
)

func init() {
	factory := func(owner *transport.Owner) (transport.SmartSubtransport, error) {
		return NewSubtransport(owner, DialOptions{}), nil
	}
	transport.Register("ssh", factory)
	// scp-like URLs ("git@host:path") carry no scheme at all
	transport.Register("", factory)
}

// DialOptions bounds the connection attempt. The zero value is usable.
type DialOptions struct {
	// Timeout applies to the TCP dial and the protocol handshake.
	// Zero means 30 seconds.
	Timeout time.Duration

	// MaxRetries bounds the retry loops around transient timeout failures
	// during handshake and channel open. Zero means 16.
	MaxRetries int

	// KnownHostsPath points at an OpenSSH known_hosts file used to verify
	// the remote host key. Empty accepts any host key.
	KnownHostsPath string
}

func (o DialOptions) timeout() time.Duration {
	if o.Timeout <= 0 {
		return 30 * time.Second
	}
	return o.Timeout
}

func (o DialOptions) maxRetries() int {
	if o.MaxRetries <= 0 {
		return 16
	}
	return o.MaxRetries
}

// Subtransport is the SSH smart subtransport. It keeps at most one stream
// open at a time: listing actions open a fresh connection, continuation
// actions return the stream their listing action opened.
type Subtransport struct {
	owner   *transport.Owner
	opts    DialOptions
	current *stream
	cred    transport.Credential
}

// NewSubtransport returns a subtransport bound to owner.
func NewSubtransport(owner *transport.Owner, opts DialOptions) *Subtransport {
	return &Subtransport{owner: owner, opts: opts}
}

// Action implements transport.SmartSubtransport. Continuation actions ignore
// the URL argument and trust the stream established by their listing action.
func (t *Subtransport) Action(rawurl string, service transport.SmartService) (transport.Stream, error) {
	switch service {
	case transport.ServiceUploadPackLs:
		return t.listing(rawurl, cmdUploadPack)
	case transport.ServiceUploadPack:
		return t.continuation("upload-pack-ls", "upload-pack")
	case transport.ServiceReceivePackLs:
		return t.listing(rawurl, cmdReceivePack)
	case transport.ServiceReceivePack:
		return t.continuation("receive-pack-ls", "receive-pack")
	default:
		return nil, fmt.Errorf("unknown smart service %d", int(service))
	}
}

func (t *Subtransport) listing(rawurl, cmd string) (transport.Stream, error) {
	s, err := t.setupConn(rawurl, cmd)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (t *Subtransport) continuation(listing, service string) (transport.Stream, error) {
	if t.current == nil {
		return nil, fmt.Errorf("%w: must call %s before %s",
			transport.ErrSequence, listing, service)
	}
	return t.current, nil
}

// Close implements transport.SmartSubtransport. The driver must close the
// current stream first.
func (t *Subtransport) Close() error {
	if t.current != nil {
		return transport.ErrStreamInUse
	}
	return nil
}

// setupConn establishes a fully authenticated exec channel and wraps it in a
// stream. Failure at any step rolls back everything acquired so far; there
// is no partial-success state.
func (t *Subtransport) setupConn(rawurl, cmd string) (st *stream, err error) {
	s := &stream{owner: t, cmd: cmd, url: rawurl}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	parts, err := parseURL(rawurl)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(parts.Host, parts.Port)

	log := t.owner.Log().With(
		zap.String("conn_id", uuid.NewString()),
		zap.String("addr", addr),
		zap.String("cmd", cmd),
	)
	log.Debug("connecting")

	s.conn, err = net.DialTimeout("tcp", addr, t.opts.timeout())
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	cred, err := t.resolveCredential(parts)
	if err != nil {
		return nil, err
	}
	t.cred = cred

	user := parts.User
	if user == "" {
		user = defaultUser
	}

	authUser, methods, err := authConfig(user, cred)
	if err != nil {
		return nil, err
	}

	hostKeys, err := t.hostKeyCallback()
	if err != nil {
		return nil, err
	}
	conf := &ssh.ClientConfig{
		User:            authUser,
		Auth:            methods,
		HostKeyCallback: hostKeys,
		Timeout:         t.opts.timeout(),
	}

	log.Debug("starting ssh handshake", zap.String("user", authUser))
	client, conn, err := t.handshake(s.conn, addr, conf)
	if err != nil {
		// handshake closed whatever connection it was using
		s.conn = nil
		return nil, err
	}
	s.client, s.conn = client, conn
	log.Debug("authenticated")

	s.sess, s.stdin, s.stdout, err = t.openChannel(client)
	if err != nil {
		return nil, err
	}
	log.Debug("channel open")

	s.log = log
	t.current = s
	return s, nil
}

// resolveCredential synthesizes a plaintext credential when the URL carries
// both a user and a password, and otherwise defers to the owner's callback.
func (t *Subtransport) resolveCredential(parts urlParts) (transport.Credential, error) {
	if parts.User != "" && parts.HasPass {
		return transport.UserpassPlaintext{
			Username: parts.User,
			Password: parts.Password,
		}, nil
	}
	if t.owner.Credentials == nil {
		return nil, fmt.Errorf("%w: no credentials available for %s", transport.ErrAuthFailed, t.owner.URL)
	}
	allowed := transport.CredentialUserpassPlaintext | transport.CredentialSSHKeyfilePassphrase
	cred, err := t.owner.Credentials(t.owner.URL, parts.User, allowed)
	if err != nil {
		return nil, fmt.Errorf("acquiring credentials: %w", err)
	}
	if cred == nil {
		return nil, fmt.Errorf("%w: credential callback produced nothing", transport.ErrAuthFailed)
	}
	return cred, nil
}

func (t *Subtransport) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if t.opts.KnownHostsPath == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(t.opts.KnownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts %s: %w", t.opts.KnownHostsPath, err)
	}
	return cb, nil
}

// handshake runs the client handshake on conn, redialing and retrying while
// the failure is a transient timeout, up to the configured bound. It returns
// the client plus the connection it ended up using.
func (t *Subtransport) handshake(conn net.Conn, addr string, conf *ssh.ClientConfig) (*ssh.Client, net.Conn, error) {
	var lastErr error
	for attempt := 0; attempt < t.opts.maxRetries(); attempt++ {
		if conn == nil {
			var err error
			conn, err = net.DialTimeout("tcp", addr, t.opts.timeout())
			if err != nil {
				return nil, nil, fmt.Errorf("connecting to %s: %w", addr, err)
			}
		}

		// ClientConfig.Timeout only covers dialing; the handshake reads
		// need their own deadline or a silent server blocks us forever.
		conn.SetDeadline(time.Now().Add(t.opts.timeout()))
		cc, chans, reqs, err := ssh.NewClientConn(conn, addr, conf)
		if err == nil {
			conn.SetDeadline(time.Time{})
			return ssh.NewClient(cc, chans, reqs), conn, nil
		}
		conn.Close()
		conn = nil

		if isAuthError(err) {
			return nil, nil, fmt.Errorf("%w: %v", transport.ErrAuthFailed, err)
		}
		if !isTransient(err) {
			return nil, nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
		}
		lastErr = err
	}
	return nil, nil, fmt.Errorf("ssh handshake with %s: %w", addr, lastErr)
}

// openChannel opens the exec channel and wires up its pipes. The remote
// command itself is started later, on first stream use.
func (t *Subtransport) openChannel(client *ssh.Client) (session, io.WriteCloser, io.Reader, error) {
	var lastErr error
	for attempt := 0; attempt < t.opts.maxRetries(); attempt++ {
		sess, err := client.NewSession()
		if err != nil {
			if !isTransient(err) {
				return nil, nil, nil, fmt.Errorf("opening channel: %w", err)
			}
			lastErr = err
			continue
		}

		stdin, err := sess.StdinPipe()
		if err != nil {
			sess.Close()
			return nil, nil, nil, fmt.Errorf("opening channel stdin: %w", err)
		}
		stdout, err := sess.StdoutPipe()
		if err != nil {
			sess.Close()
			return nil, nil, nil, fmt.Errorf("opening channel stdout: %w", err)
		}
		return sess, stdin, stdout, nil
	}
	return nil, nil, nil, fmt.Errorf("opening channel: %w", lastErr)
}

// isTransient reports whether err is a timeout-flavored failure worth
// retrying, as opposed to a hard protocol or network error. The ssh package
// wraps i/o errors with fmt.Errorf %v, so the string check catches deadline
// expiries that errors.As cannot reach.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "i/o timeout")
}

package transport

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// SmartService identifies one of the four smart-protocol service actions.
type SmartService int

const (
	// ServiceUploadPackLs establishes a connection and lists refs for fetch.
	ServiceUploadPackLs SmartService = iota + 1
	// ServiceUploadPack negotiates a pack on the connection opened by
	// ServiceUploadPackLs.
	ServiceUploadPack
	// ServiceReceivePackLs establishes a connection and lists refs for push.
	ServiceReceivePackLs
	// ServiceReceivePack sends ref updates and a pack on the connection
	// opened by ServiceReceivePackLs.
	ServiceReceivePack
)

// String returns the wire name of the service, e.g. "git-upload-pack".
func (s SmartService) String() string {
	switch s {
	case ServiceUploadPackLs, ServiceUploadPack:
		return "git-upload-pack"
	case ServiceReceivePackLs, ServiceReceivePack:
		return "git-receive-pack"
	default:
		return fmt.Sprintf("unknown-service(%d)", int(s))
	}
}

// IsListing reports whether the service is a listing action, i.e. one that
// establishes a new connection rather than continuing an existing one.
func (s SmartService) IsListing() bool {
	return s == ServiceUploadPackLs || s == ServiceReceivePackLs
}

// Stream is a bidirectional byte stream bound to one service exchange.
// Reads and writes block until the underlying transport completes them.
// A zero-length read is not an error. Close releases every resource the
// stream holds and must be called exactly once by the driver.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// SmartSubtransport maps service actions onto connections for a single
// remote. Implementations keep at most one Stream live at a time.
type SmartSubtransport interface {
	// Action returns the Stream for the given service. Listing actions
	// open a new connection; continuation actions return the Stream their
	// listing action opened, or a sequencing error if there is none.
	Action(url string, service SmartService) (Stream, error)

	// Close releases the subtransport. It is an error (ErrStreamInUse) to
	// close a subtransport whose Stream is still open.
	Close() error
}

// Owner is the handle a subtransport keeps on the transport that embeds it:
// the configured remote URL and the callback used to obtain credentials when
// the URL does not carry them.
type Owner struct {
	// URL is the remote URL the embedding transport was configured with.
	URL string

	// Credentials is invoked when a subtransport needs authentication
	// material. May be nil, in which case credential-requiring setups fail.
	Credentials CredentialCallback

	// Logger receives transport diagnostics. Nil means no logging.
	Logger *zap.Logger
}

// Log returns the owner's logger, or a no-op logger if none is set.
func (o *Owner) Log() *zap.Logger {
	if o == nil || o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Factory constructs a subtransport bound to an owner.
type Factory func(owner *Owner) (SmartSubtransport, error)

var registry = map[string]Factory{}

// Register installs a subtransport factory for a URL scheme. The empty
// scheme handles scp-like URLs ("user@host:path") that carry no scheme at
// all. Register is called from subtransport package init functions.
func Register(scheme string, f Factory) {
	registry[scheme] = f
}

// Scheme extracts the URL scheme, or "" for scp-like shorthand URLs.
func Scheme(rawurl string) string {
	if i := strings.Index(rawurl, "://"); i >= 0 {
		return strings.ToLower(rawurl[:i])
	}
	return ""
}

// New selects a subtransport for the owner's URL by scheme.
func New(owner *Owner) (SmartSubtransport, error) {
	scheme := Scheme(owner.URL)
	f, ok := registry[scheme]
	if !ok {
		return nil, fmt.Errorf("unsupported transport %q in URL %q", scheme, owner.URL)
	}
	return f(owner)
}

// Package http implements the smart-protocol subtransport for HTTP remotes.
//
// Unlike SSH, smart HTTP is request-scoped: the listing action maps to
// GET /info/refs?service=... and the continuation action to POST /<service>,
// so the continuation returns a fresh stream rather than reusing the listing
// stream. The sequencing contract is the same: a continuation without its
// listing action fails.
package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fenilsonani/vcs-remote/internal/transport"
)

func init() {
	factory := func(owner *transport.Owner) (transport.SmartSubtransport, error) {
		return NewSubtransport(owner), nil
	}
	transport.Register("http", factory)
	transport.Register("https", factory)
}

const userAgent = "vcs-remote/1.0 (git-http-transport)"

// Subtransport is the smart HTTP subtransport.
type Subtransport struct {
	owner       *transport.Owner
	client      *http.Client
	current     *stream
	lastListing transport.SmartService
	username    string
	password    string
	haveAuth    bool
}

// NewSubtransport returns a subtransport bound to owner.
func NewSubtransport(owner *transport.Owner) *Subtransport {
	return &Subtransport{
		owner: owner,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Action implements transport.SmartSubtransport.
func (t *Subtransport) Action(rawurl string, service transport.SmartService) (transport.Stream, error) {
	base, err := url.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transport.ErrMalformedURL, err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("%w: no host in %q", transport.ErrMalformedURL, rawurl)
	}
	if u := base.User.Username(); u != "" {
		if pw, ok := base.User.Password(); ok {
			t.username, t.password, t.haveAuth = u, pw, true
		}
		base.User = nil
	}

	switch service {
	case transport.ServiceUploadPackLs, transport.ServiceReceivePackLs:
		t.replaceCurrent(&stream{owner: t, base: base, service: service, listing: true})
		t.lastListing = service
		return t.current, nil

	case transport.ServiceUploadPack, transport.ServiceReceivePack:
		if t.lastListing != service-1 {
			return nil, fmt.Errorf("%w: must list refs before requesting %v",
				transport.ErrSequence, service)
		}
		t.replaceCurrent(&stream{owner: t, base: base, service: service})
		return t.current, nil

	default:
		return nil, fmt.Errorf("unknown smart service %d", int(service))
	}
}

// replaceCurrent installs s as the one live stream, closing any predecessor
// so it cannot linger holding a response body or clear the pointer later.
func (t *Subtransport) replaceCurrent(s *stream) {
	if t.current != nil {
		t.current.Close()
	}
	t.current = s
}

// Close implements transport.SmartSubtransport.
func (t *Subtransport) Close() error {
	if t.current != nil {
		return transport.ErrStreamInUse
	}
	return nil
}

// do issues the request, replaying it once with credentials from the owner's
// callback if the server demands authentication.
func (t *Subtransport) do(req *http.Request, rewind func() io.Reader) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	if t.haveAuth {
		req.SetBasicAuth(t.username, t.password)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && !t.haveAuth && t.owner.Credentials != nil {
		resp.Body.Close()

		cred, err := t.owner.Credentials(t.owner.URL, "", transport.CredentialUserpassPlaintext)
		if err != nil {
			return nil, fmt.Errorf("acquiring credentials: %w", err)
		}
		userpass, ok := cred.(transport.UserpassPlaintext)
		if !ok {
			return nil, fmt.Errorf("%w: http transport needs a username/password credential", transport.ErrAuthFailed)
		}
		t.username, t.password, t.haveAuth = userpass.Username, userpass.Password, true

		retry := req.Clone(req.Context())
		if rewind != nil {
			retry.Body = io.NopCloser(rewind())
		}
		retry.SetBasicAuth(t.username, t.password)
		if resp, err = t.client.Do(retry); err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: server rejected credentials (%d)", transport.ErrAuthFailed, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return resp, nil
}

// stream is one smart HTTP exchange. A listing stream is read-only; a
// continuation stream buffers writes and sends them as the POST body on
// first read.
type stream struct {
	owner   *Subtransport
	base    *url.URL
	service transport.SmartService
	listing bool
	req     bytes.Buffer
	body    io.ReadCloser
	closed  bool
}

func (s *stream) Read(p []byte) (int, error) {
	if s.body == nil {
		var err error
		if s.listing {
			err = s.sendInfoRefs()
		} else {
			err = s.sendServiceRequest()
		}
		if err != nil {
			return 0, err
		}
	}
	return s.body.Read(p)
}

func (s *stream) Write(p []byte) (int, error) {
	if s.listing {
		return 0, fmt.Errorf("listing stream is read-only")
	}
	if s.body != nil {
		return 0, fmt.Errorf("request already sent")
	}
	return s.req.Write(p)
}

func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.owner != nil && s.owner.current == s {
		s.owner.current = nil
	}
	if s.body != nil {
		s.body.Close()
	}
	return nil
}

// sendInfoRefs performs the ref discovery request: GET /info/refs?service=...
func (s *stream) sendInfoRefs() error {
	reqURL := fmt.Sprintf("%s/info/refs?service=%s", strings.TrimSuffix(s.base.String(), "/"), s.service)
	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "*/*")

	resp, err := s.owner.do(req, nil)
	if err != nil {
		return err
	}

	expected := fmt.Sprintf("application/x-%s-advertisement", s.service)
	if ct := resp.Header.Get("Content-Type"); ct != expected {
		resp.Body.Close()
		return fmt.Errorf("unexpected content type: %s", ct)
	}
	s.body = resp.Body
	return nil
}

// sendServiceRequest posts the buffered negotiation request to /<service>.
func (s *stream) sendServiceRequest() error {
	payload := s.req.Bytes()
	reqURL := fmt.Sprintf("%s/%s", strings.TrimSuffix(s.base.String(), "/"), s.service)
	req, err := http.NewRequest(http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", fmt.Sprintf("application/x-%s-request", s.service))
	req.Header.Set("Accept", fmt.Sprintf("application/x-%s-result", s.service))

	resp, err := s.owner.do(req, func() io.Reader { return bytes.NewReader(payload) })
	if err != nil {
		return err
	}
	s.body = resp.Body
	return nil
}

package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenilsonani/vcs-remote/internal/transport"
)

const mockAdvertisement = "001e# service=git-upload-pack\n" +
	"0000" +
	"003d1111111111111111111111111111111111111111 refs/heads/main\n" +
	"0000"

func newUploadPackServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repo/info/refs":
			assert.Equal(t, "git-upload-pack", r.URL.Query().Get("service"))
			w.Header().Set("Content-Type", "application/x-git-upload-pack-advertisement")
			io.WriteString(w, mockAdvertisement)
		case "/repo/git-upload-pack":
			body, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(body), "want")
			assert.Equal(t, "application/x-git-upload-pack-request", r.Header.Get("Content-Type"))
			w.Header().Set("Content-Type", "application/x-git-upload-pack-result")
			io.WriteString(w, "PACKDATA")
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestListingAction(t *testing.T) {
	server := newUploadPackServer(t)
	defer server.Close()

	sub := NewSubtransport(&transport.Owner{URL: server.URL + "/repo"})
	stream, err := sub.Action(server.URL+"/repo", transport.ServiceUploadPackLs)
	require.NoError(t, err)

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, mockAdvertisement, string(data))

	require.NoError(t, stream.Close())
	assert.NoError(t, sub.Close())
}

func TestContinuationAction(t *testing.T) {
	server := newUploadPackServer(t)
	defer server.Close()

	sub := NewSubtransport(&transport.Owner{URL: server.URL + "/repo"})
	ls, err := sub.Action(server.URL+"/repo", transport.ServiceUploadPackLs)
	require.NoError(t, err)
	_, err = io.ReadAll(ls)
	require.NoError(t, err)
	require.NoError(t, ls.Close())

	stream, err := sub.Action(server.URL+"/repo", transport.ServiceUploadPack)
	require.NoError(t, err)

	// request is buffered until the first read
	_, err = io.WriteString(stream, "0032want 1111111111111111111111111111111111111111\n00000009done\n")
	require.NoError(t, err)

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "PACKDATA", string(data))

	require.NoError(t, stream.Close())
	assert.NoError(t, sub.Close())
}

func TestContinuationWithoutListing(t *testing.T) {
	sub := NewSubtransport(&transport.Owner{URL: "http://example.com/repo"})

	stream, err := sub.Action("http://example.com/repo", transport.ServiceUploadPack)

	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrSequence)
	assert.Nil(t, stream)
}

func TestCloseWithLiveStream(t *testing.T) {
	sub := NewSubtransport(&transport.Owner{URL: "http://example.com/repo"})
	stream, err := sub.Action("http://example.com/repo", transport.ServiceUploadPackLs)
	require.NoError(t, err)

	assert.ErrorIs(t, sub.Close(), transport.ErrStreamInUse)

	require.NoError(t, stream.Close())
	assert.NoError(t, sub.Close())
}

func TestNewActionClosesReplacedStream(t *testing.T) {
	sub := NewSubtransport(&transport.Owner{URL: "http://example.com/repo"})

	old, err := sub.Action("http://example.com/repo", transport.ServiceUploadPackLs)
	require.NoError(t, err)

	replacement, err := sub.Action("http://example.com/repo", transport.ServiceUploadPackLs)
	require.NoError(t, err)

	// the stale stream is closed, not orphaned, and the subtransport
	// tracks only the replacement
	assert.True(t, old.(*stream).closed)
	assert.Same(t, replacement, sub.current)

	require.NoError(t, replacement.Close())
	assert.NoError(t, sub.Close())
}

func TestListingStreamIsReadOnly(t *testing.T) {
	sub := NewSubtransport(&transport.Owner{URL: "http://example.com/repo"})
	stream, err := sub.Action("http://example.com/repo", transport.ServiceUploadPackLs)
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Write([]byte("nope"))
	assert.Error(t, err)
}

func TestUnexpectedContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html>not git</html>")
	}))
	defer server.Close()

	sub := NewSubtransport(&transport.Owner{URL: server.URL + "/repo"})
	stream, err := sub.Action(server.URL+"/repo", transport.ServiceUploadPackLs)
	require.NoError(t, err)
	defer stream.Close()

	_, err = io.ReadAll(stream)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected content type")
}

func TestAuthRetryWithCredentialCallback(t *testing.T) {
	var sawAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="git"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		sawAuth = user + ":" + pass
		w.Header().Set("Content-Type", "application/x-git-upload-pack-advertisement")
		io.WriteString(w, mockAdvertisement)
	}))
	defer server.Close()

	calls := 0
	owner := &transport.Owner{
		URL: server.URL + "/repo",
		Credentials: func(url, hint string, allowed transport.CredentialType) (transport.Credential, error) {
			calls++
			assert.True(t, allowed.Has(transport.CredentialUserpassPlaintext))
			return transport.UserpassPlaintext{Username: "alice", Password: "s3cret"}, nil
		},
	}

	sub := NewSubtransport(owner)
	stream, err := sub.Action(server.URL+"/repo", transport.ServiceUploadPackLs)
	require.NoError(t, err)
	defer stream.Close()

	_, err = io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "alice:s3cret", sawAuth)
}

func TestAuthRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	sub := NewSubtransport(&transport.Owner{URL: server.URL + "/repo"})
	stream, err := sub.Action(server.URL+"/repo", transport.ServiceUploadPackLs)
	require.NoError(t, err)
	defer stream.Close()

	_, err = io.ReadAll(stream)
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrAuthFailed)
}

package ssh

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenilsonani/vcs-remote/internal/transport"
)

// fakeSession records command dispatches in place of a live exec channel.
type fakeSession struct {
	started []string
	closed  bool
}

func (f *fakeSession) Start(cmd string) error {
	f.started = append(f.started, cmd)
	return nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func newTestStream(t *Subtransport, url, cmd string, remote string) (*stream, *fakeSession, *bytes.Buffer) {
	sess := &fakeSession{}
	sent := &bytes.Buffer{}
	s := &stream{
		owner:  t,
		sess:   sess,
		stdin:  nopWriteCloser{sent},
		stdout: strings.NewReader(remote),
		cmd:    cmd,
		url:    url,
	}
	t.current = s
	return s, sess, sent
}

func newTestSubtransport(url string) *Subtransport {
	return NewSubtransport(&transport.Owner{URL: url}, DialOptions{})
}

func TestActionContinuationWithoutListing(t *testing.T) {
	tests := []struct {
		name    string
		service transport.SmartService
	}{
		{name: "upload-pack", service: transport.ServiceUploadPack},
		{name: "receive-pack", service: transport.ServiceReceivePack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := newTestSubtransport("git@example.com:repo.git")

			stream, err := sub.Action("git@example.com:repo.git", tt.service)

			require.Error(t, err)
			assert.ErrorIs(t, err, transport.ErrSequence)
			assert.Nil(t, stream)
		})
	}
}

func TestActionUnknownService(t *testing.T) {
	sub := newTestSubtransport("git@example.com:repo.git")

	stream, err := sub.Action("git@example.com:repo.git", transport.SmartService(99))

	assert.Error(t, err)
	assert.Nil(t, stream)
}

func TestActionContinuationReturnsCurrentStream(t *testing.T) {
	sub := newTestSubtransport("git@example.com:repo.git")
	s, _, _ := newTestStream(sub, "git@example.com:repo.git", cmdUploadPack, "")

	got, err := sub.Action("git@example.com:repo.git", transport.ServiceUploadPack)

	require.NoError(t, err)
	assert.Same(t, s, got.(*stream))

	// a second continuation still yields the same stream, no reconnect
	again, err := sub.Action("git@example.com:repo.git", transport.ServiceUploadPack)
	require.NoError(t, err)
	assert.Same(t, s, again.(*stream))
}

func TestStreamLazyDispatchOnRead(t *testing.T) {
	sub := newTestSubtransport("git@example.com:repo.git")
	s, sess, _ := newTestStream(sub, "git@example.com:repo.git", cmdUploadPack, "0000")

	buf := make([]byte, 4)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.Equal(t, []string{"git-upload-pack 'repo.git'"}, sess.started)

	// second read must not redispatch
	_, err = s.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
	assert.Len(t, sess.started, 1)
}

func TestStreamLazyDispatchOnWrite(t *testing.T) {
	sub := newTestSubtransport("host:repo.git")
	s, sess, sent := newTestStream(sub, "host:repo.git", cmdReceivePack, "")

	n, err := s.Write([]byte("0000"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "0000", sent.String())

	_, err = s.Write([]byte("0000"))
	require.NoError(t, err)

	assert.Equal(t, []string{"git-receive-pack 'repo.git'"}, sess.started)
}

func TestStreamDispatchFailsOnMalformedURL(t *testing.T) {
	sub := newTestSubtransport("example.com")
	s, sess, _ := newTestStream(sub, "example.com", cmdUploadPack, "")

	_, err := s.Read(make([]byte, 1))

	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrMalformedURL)
	assert.Empty(t, sess.started)
}

func TestSendCommandTwiceIsAnError(t *testing.T) {
	sub := newTestSubtransport("host:repo.git")
	s, _, _ := newTestStream(sub, "host:repo.git", cmdUploadPack, "")

	require.NoError(t, s.sendCommand())
	assert.Error(t, s.sendCommand())
}

func TestStreamCloseClearsCurrentAndIsIdempotent(t *testing.T) {
	sub := newTestSubtransport("host:repo.git")
	s, sess, _ := newTestStream(sub, "host:repo.git", cmdUploadPack, "")

	require.NoError(t, s.Close())
	assert.Nil(t, sub.current)
	assert.True(t, sess.closed)

	require.NoError(t, s.Close())
}

func TestSubtransportCloseWithLiveStream(t *testing.T) {
	sub := newTestSubtransport("host:repo.git")
	s, _, _ := newTestStream(sub, "host:repo.git", cmdUploadPack, "")

	err := sub.Close()
	assert.ErrorIs(t, err, transport.ErrStreamInUse)

	require.NoError(t, s.Close())
	assert.NoError(t, sub.Close())
}

func TestSetupConnFailureLeavesNoCurrentStream(t *testing.T) {
	// malformed URL fails before anything is dialed
	sub := newTestSubtransport("not-a-remote")

	stream, err := sub.Action("not-a-remote", transport.ServiceUploadPackLs)

	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrMalformedURL)
	assert.Nil(t, stream)
	assert.Nil(t, sub.current)
	assert.NoError(t, sub.Close())
}

func TestResolveCredential(t *testing.T) {
	t.Run("url user and password synthesize plaintext", func(t *testing.T) {
		sub := newTestSubtransport("ssh://alice:pw@example.com/r.git")

		cred, err := sub.resolveCredential(urlParts{
			User:     "alice",
			Password: "pw",
			HasPass:  true,
		})

		require.NoError(t, err)
		assert.Equal(t, transport.UserpassPlaintext{Username: "alice", Password: "pw"}, cred)
	})

	t.Run("callback invoked with username hint", func(t *testing.T) {
		var gotHint string
		var gotAllowed transport.CredentialType
		owner := &transport.Owner{
			URL: "git@example.com:repo.git",
			Credentials: func(url, hint string, allowed transport.CredentialType) (transport.Credential, error) {
				gotHint = hint
				gotAllowed = allowed
				return transport.SSHKeyfilePassphrase{PrivateKeyPath: "/id"}, nil
			},
		}
		sub := NewSubtransport(owner, DialOptions{})

		cred, err := sub.resolveCredential(urlParts{User: "git"})

		require.NoError(t, err)
		assert.Equal(t, "git", gotHint)
		assert.True(t, gotAllowed.Has(transport.CredentialUserpassPlaintext))
		assert.True(t, gotAllowed.Has(transport.CredentialSSHKeyfilePassphrase))
		assert.IsType(t, transport.SSHKeyfilePassphrase{}, cred)
	})

	t.Run("no callback", func(t *testing.T) {
		sub := newTestSubtransport("git@example.com:repo.git")

		_, err := sub.resolveCredential(urlParts{User: "git"})

		assert.ErrorIs(t, err, transport.ErrAuthFailed)
	})

	t.Run("callback produces nothing", func(t *testing.T) {
		owner := &transport.Owner{
			URL: "git@example.com:repo.git",
			Credentials: func(string, string, transport.CredentialType) (transport.Credential, error) {
				return nil, nil
			},
		}
		sub := NewSubtransport(owner, DialOptions{})

		_, err := sub.resolveCredential(urlParts{User: "git"})

		assert.ErrorIs(t, err, transport.ErrAuthFailed)
	})
}

package ssh

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/fenilsonani/vcs-remote/internal/transport"
)

// authConfig resolves a credential into the username and auth methods for
// the client handshake. A plaintext credential carries its own username,
// which takes precedence over the one extracted from the URL; a keyfile
// credential authenticates as the URL's user.
func authConfig(user string, cred transport.Credential) (string, []ssh.AuthMethod, error) {
	switch c := cred.(type) {
	case transport.UserpassPlaintext:
		return c.Username, []ssh.AuthMethod{ssh.Password(c.Password)}, nil

	case transport.SSHKeyfilePassphrase:
		signer, err := loadSigner(c.PrivateKeyPath, c.Passphrase)
		if err != nil {
			return "", nil, err
		}
		return user, []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil

	default:
		return "", nil, fmt.Errorf("%w: unsupported credential type %T", transport.ErrAuthFailed, cred)
	}
}

func loadSigner(path, passphrase string) (ssh.Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key %s: %w", path, err)
	}
	if passphrase != "" {
		signer, err := ssh.ParsePrivateKeyWithPassphrase(pem, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("%w: parsing private key %s: %v", transport.ErrAuthFailed, path, err)
		}
		return signer, nil
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing private key %s: %v", transport.ErrAuthFailed, path, err)
	}
	return signer, nil
}

// isAuthError distinguishes a rejected-credentials handshake failure from
// connection-level failures. x/crypto/ssh does not expose a typed error for
// client-side auth rejection.
func isAuthError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "unable to authenticate")
}

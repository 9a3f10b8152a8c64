package transport

// CredentialType is a bitmask of credential kinds a subtransport is willing
// to accept from the credential callback.
type CredentialType uint

const (
	// CredentialUserpassPlaintext is a username/password pair.
	CredentialUserpassPlaintext CredentialType = 1 << iota
	// CredentialSSHKeyfilePassphrase is an on-disk SSH key pair with an
	// optional passphrase for the private key.
	CredentialSSHKeyfilePassphrase
)

// Has reports whether t includes kind.
func (t CredentialType) Has(kind CredentialType) bool {
	return t&kind != 0
}

// Credential is one authentication secret. The variant set is closed:
// UserpassPlaintext and SSHKeyfilePassphrase.
type Credential interface {
	// Type tags the variant for dispatch.
	Type() CredentialType
}

// UserpassPlaintext authenticates with a username and password.
type UserpassPlaintext struct {
	Username string
	Password string
}

// Type implements Credential.
func (UserpassPlaintext) Type() CredentialType { return CredentialUserpassPlaintext }

// SSHKeyfilePassphrase authenticates with an on-disk key pair. PublicKeyPath
// may be empty; the private key alone is sufficient. Passphrase is empty for
// unencrypted keys.
type SSHKeyfilePassphrase struct {
	PublicKeyPath  string
	PrivateKeyPath string
	Passphrase     string
}

// Type implements Credential.
func (SSHKeyfilePassphrase) Type() CredentialType { return CredentialSSHKeyfilePassphrase }

// CredentialCallback produces a credential for url. usernameHint is the
// username extracted from the URL, or "" when the URL named none. allowed
// restricts which variants the caller can put to use; returning any other
// variant fails authentication.
type CredentialCallback func(url, usernameHint string, allowed CredentialType) (Credential, error)

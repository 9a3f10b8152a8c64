package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fenilsonani/vcs-remote/internal/transport"
)

// credentialCallback builds the credential-acquisition callback the
// subtransports invoke when the URL itself carries no credentials. A
// configured identity file wins; otherwise the user is prompted.
func credentialCallback(cmd *cobra.Command, cfg *Config) transport.CredentialCallback {
	prompter := &prompter{
		in:     bufio.NewReader(cmd.InOrStdin()),
		rawIn:  cmd.InOrStdin(),
		errOut: cmd.ErrOrStderr(),
	}

	return func(url, usernameHint string, allowed transport.CredentialType) (transport.Credential, error) {
		if cfg.IdentityFile != "" && allowed.Has(transport.CredentialSSHKeyfilePassphrase) {
			return transport.SSHKeyfilePassphrase{
				PublicKeyPath:  cfg.IdentityFile + ".pub",
				PrivateKeyPath: cfg.IdentityFile,
				Passphrase:     cfg.Passphrase,
			}, nil
		}

		if !allowed.Has(transport.CredentialUserpassPlaintext) {
			return nil, fmt.Errorf("no usable credential for %s", url)
		}

		user := usernameHint
		if user == "" {
			line, err := prompter.line(fmt.Sprintf("Username for %s: ", url))
			if err != nil {
				return nil, err
			}
			user = line
		}

		pass, err := prompter.password(fmt.Sprintf("Password for %s: ", user))
		if err != nil {
			return nil, err
		}
		return transport.UserpassPlaintext{Username: user, Password: pass}, nil
	}
}

type prompter struct {
	in     *bufio.Reader
	rawIn  io.Reader
	errOut io.Writer
}

func (p *prompter) line(prompt string) (string, error) {
	fmt.Fprint(p.errOut, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// password disables echo when stdin is a terminal and falls back to a plain
// line read otherwise (pipes, tests).
func (p *prompter) password(prompt string) (string, error) {
	if f, ok := p.rawIn.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.errOut, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.errOut)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	return p.line(prompt)
}

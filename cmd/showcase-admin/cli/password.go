package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	errNoTerminal       = errors.New("no terminal to prompt for a password; use --password-stdin")
	errPasswordMismatch = errors.New("passwords do not match")
)

func readTerminalPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errNoTerminal
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}

// passwordFlags resolves the new password from --password, --password-stdin
// or an interactive prompt with confirmation, in that order.
type passwordFlags struct {
	password  string
	fromStdin bool
}

func (p *passwordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.password, "password", "", "new password (prompted if omitted; visible in the process list)")
	cmd.Flags().BoolVar(&p.fromStdin, "password-stdin", false, "read the new password from the first line of stdin")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
}

func (p *passwordFlags) resolve(cmd *cobra.Command, rt *runtime) (string, error) {
	if p.password != "" {
		return p.password, nil
	}
	if p.fromStdin {
		return readLine(cmd.InOrStdin())
	}

	password, err := rt.readPassword("Password: ")
	if err != nil {
		return "", err
	}
	confirm, err := rt.readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", errPasswordMismatch
	}
	return password, nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

package session

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Passphrase returns the value of envName when set. Otherwise it prompts
// on the terminal without echo; confirm asks twice.
func Passphrase(envName string, confirm bool) (string, error) {
	if p := os.Getenv(envName); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no passphrase: set %s or run interactively", envName)
	}

	p, err := ReadSecret(os.Stderr, "Session passphrase: ")
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", fmt.Errorf("passphrase cannot be empty")
	}
	if confirm {
		again, err := ReadSecret(os.Stderr, "Confirm passphrase: ")
		if err != nil {
			return "", err
		}
		if again != p {
			return "", fmt.Errorf("passphrases do not match")
		}
	}
	return p, nil
}

// ReadSecret prints prompt to w and reads a line from the terminal
// without echo.
func ReadSecret(w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// PromptSealer is an AgeSealer whose passphrase is only asked for the
// first time the session file is sealed or opened.
type PromptSealer struct {
	envName    string
	workFactor int
	confirm    bool

	once   sync.Once
	sealer *AgeSealer
	err    error
}

var _ Sealer = (*PromptSealer)(nil)

// NewPromptSealer creates a PromptSealer. confirm asks for the passphrase
// twice, which is what a new session file wants.
func NewPromptSealer(envName string, workFactor int, confirm bool) *PromptSealer {
	return &PromptSealer{envName: envName, workFactor: workFactor, confirm: confirm}
}

func (p *PromptSealer) resolve() (*AgeSealer, error) {
	p.once.Do(func() {
		pass, err := Passphrase(p.envName, p.confirm)
		if err != nil {
			p.err = err
			return
		}
		p.sealer = NewAgeSealer(pass, p.workFactor)
	})
	return p.sealer, p.err
}

func (p *PromptSealer) Seal(r io.Reader, w io.Writer) error {
	s, err := p.resolve()
	if err != nil {
		return err
	}
	return s.Seal(r, w)
}

func (p *PromptSealer) Open(r io.Reader, w io.Writer) error {
	s, err := p.resolve()
	if err != nil {
		return err
	}
	return s.Open(r, w)
}

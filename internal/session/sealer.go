package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
)

// ErrWrongPassphrase means the session file could not be opened with the
// given passphrase.
var ErrWrongPassphrase = errors.New("wrong passphrase")

// Sealer encrypts the session file at rest.
type Sealer interface {
	Seal(r io.Reader, w io.Writer) error
	Open(r io.Reader, w io.Writer) error
}

// AgeSealer encrypts with an age scrypt recipient derived from a passphrase.
type AgeSealer struct {
	passphrase string
	workFactor int
}

var _ Sealer = (*AgeSealer)(nil)

// NewAgeSealer creates a sealer. A workFactor of 0 keeps age's default.
func NewAgeSealer(passphrase string, workFactor int) *AgeSealer {
	return &AgeSealer{passphrase: passphrase, workFactor: workFactor}
}

// Seal reads plaintext from r and writes age ciphertext to w.
func (s *AgeSealer) Seal(r io.Reader, w io.Writer) error {
	recipient, err := age.NewScryptRecipient(s.passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}
	if s.workFactor > 0 {
		recipient.SetWorkFactor(s.workFactor)
	}

	encWriter, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting session: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Open reads age ciphertext from r and writes plaintext to w.
func (s *AgeSealer) Open(r io.Reader, w io.Writer) error {
	identity, err := age.NewScryptIdentity(s.passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt identity: %w", err)
	}
	if s.workFactor > 22 {
		identity.SetMaxWorkFactor(s.workFactor)
	}

	decReader, err := age.Decrypt(r, identity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return ErrWrongPassphrase
		}
		return fmt.Errorf("opening session: %w", err)
	}
	if _, err := io.Copy(w, decReader); err != nil {
		return fmt.Errorf("decrypting session: %w", err)
	}
	return nil
}

// plainHeader marks files written by PlainSealer.
var plainHeader = []byte("MOMENTS\x00")

// PlainSealer only prepends a fixed header. It keeps sealed output
// distinguishable from plaintext without any cryptography; use it in tests.
type PlainSealer struct{}

var _ Sealer = PlainSealer{}

func (PlainSealer) Seal(r io.Reader, w io.Writer) error {
	if _, err := w.Write(plainHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (PlainSealer) Open(r io.Reader, w io.Writer) error {
	header := make([]byte, len(plainHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(header, plainHeader) {
		return fmt.Errorf("invalid session header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

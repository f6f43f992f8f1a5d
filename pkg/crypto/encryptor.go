// Package crypto seals stored source documents with age.
package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
)

// ageHeader prefixes every binary age file.
var ageHeader = []byte("age-encryption.org/v1\n")

var ErrNotSealed = errors.New("data is not an age file")

// Encryptor seals with one X25519 identity and opens with any of the
// identities it was given, so documents written before a key rotation stay
// readable.
type Encryptor struct {
	recipient  *age.X25519Recipient
	identities []age.Identity
}

// NewEncryptor parses a comma-separated list of AGE-SECRET-KEY identities.
// The first one seals new data. An empty key generates an ephemeral
// identity, which is only useful in development.
func NewEncryptor(keys string) (*Encryptor, error) {
	var parsed []*age.X25519Identity
	for _, k := range strings.Split(keys, ",") {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		identity, err := age.ParseX25519Identity(k)
		if err != nil {
			return nil, fmt.Errorf("parsing identity %d: %w", len(parsed)+1, err)
		}
		parsed = append(parsed, identity)
	}

	if len(parsed) == 0 {
		identity, err := age.GenerateX25519Identity()
		if err != nil {
			return nil, fmt.Errorf("generating identity: %w", err)
		}
		parsed = append(parsed, identity)
	}

	e := &Encryptor{recipient: parsed[0].Recipient()}
	for _, id := range parsed {
		e.identities = append(e.identities, id)
	}
	return e, nil
}

// GenerateKey returns a new identity string suitable for ENCRYPTION_KEY.
func GenerateKey() (string, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating identity: %w", err)
	}
	return identity.String(), nil
}

// Seal returns a writer that encrypts into dst. Close must be called to
// flush the final chunk.
func (e *Encryptor) Seal(dst io.Writer) (io.WriteCloser, error) {
	w, err := age.Encrypt(dst, e.recipient)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	return w, nil
}

// Open returns a reader over the plaintext of src.
func (e *Encryptor) Open(src io.Reader) (io.Reader, error) {
	r, err := age.Decrypt(src, e.identities...)
	if err != nil {
		return nil, fmt.Errorf("creating decryptor: %w", err)
	}
	return r, nil
}

func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := e.Seal(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing encryptor: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if !IsSealed(ciphertext) {
		return nil, ErrNotSealed
	}
	r, err := e.Open(bytes.NewReader(ciphertext))
	if err != nil {
		return nil, err
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading plaintext: %w", err)
	}
	return plaintext, nil
}

// PublicKey returns the recipient new data is sealed to.
func (e *Encryptor) PublicKey() string {
	return e.recipient.String()
}

// IsSealed reports whether data looks like an age file.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, ageHeader)
}

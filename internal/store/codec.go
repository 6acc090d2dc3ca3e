package store

import (
	"fmt"

	"github.com/nao1215/byteforge/internal/cipher"
	"github.com/nao1215/byteforge/internal/model"
)

// codec converts entities between their plaintext form and the encrypted
// column values stored in the database. It is the only user of the cipher.
type codec struct {
	c *cipher.Cipher
}

// seal encrypts one field. Empty strings are stored as-is.
func (k codec) seal(field, plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	out, err := k.c.Encrypt(plain)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt %s: %w", field, err)
	}
	return out, nil
}

// open decrypts one field. Empty strings are returned as-is.
func (k codec) open(field, sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	out, err := k.c.Decrypt(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt %s: %w", field, err)
	}
	return out, nil
}

// sealedTarget holds the encrypted columns of a target row.
type sealedTarget struct {
	name  string
	scope string
}

func (k codec) sealTarget(t *model.Target) (sealedTarget, error) {
	name, err := k.seal("target name", t.Name)
	if err != nil {
		return sealedTarget{}, err
	}
	scope, err := k.seal("target scope", t.Scope)
	if err != nil {
		return sealedTarget{}, err
	}
	return sealedTarget{name: name, scope: scope}, nil
}

func (k codec) openTarget(t *model.Target, s sealedTarget) error {
	var err error
	if t.Name, err = k.open("target name", s.name); err != nil {
		return err
	}
	if t.Scope, err = k.open("target scope", s.scope); err != nil {
		return err
	}
	return nil
}

func (k codec) sealJobLog(log string) (string, error) {
	return k.seal("job log", log)
}

func (k codec) openJobLog(sealed string) (string, error) {
	return k.open("job log", sealed)
}

// sealedFinding holds the encrypted columns of a finding row.
type sealedFinding struct {
	title       string
	description string
	remediation string
}

func (k codec) sealFinding(f *model.Finding) (sealedFinding, error) {
	var (
		s   sealedFinding
		err error
	)
	if s.title, err = k.seal("finding title", f.Title); err != nil {
		return s, err
	}
	if s.description, err = k.seal("finding description", f.Description); err != nil {
		return s, err
	}
	if s.remediation, err = k.seal("finding remediation", f.Remediation); err != nil {
		return s, err
	}
	return s, nil
}

func (k codec) openFinding(f *model.Finding, s sealedFinding) error {
	var err error
	if f.Title, err = k.open("finding title", s.title); err != nil {
		return err
	}
	if f.Description, err = k.open("finding description", s.description); err != nil {
		return err
	}
	if f.Remediation, err = k.open("finding remediation", s.remediation); err != nil {
		return err
	}
	return nil
}

func (k codec) sealEvidence(e *model.Evidence) (string, error) {
	return k.seal("evidence data", e.Data)
}

func (k codec) openEvidence(e *model.Evidence, sealed string) error {
	var err error
	e.Data, err = k.open("evidence data", sealed)
	return err
}

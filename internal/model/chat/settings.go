package chat

import (
	"math"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	MinCreativity     = 0.0
	MaxCreativity     = 1.0
	DefaultCreativity = 0.3
)

// ErrCreativityOutOfRange is returned by Settings.Validate.
var ErrCreativityOutOfRange = errors.New("creativity must be between 0.0 and 1.0")

// Settings are supplied by the operator with every turn and never stored.
type Settings struct {
	Credential string  `json:"-"`
	Creativity float64 `json:"creativity"`
}

// HasCredential reports whether a non-blank credential was supplied.
func (s Settings) HasCredential() bool {
	return strings.TrimSpace(s.Credential) != ""
}

// Validate checks the creativity bounds.
func (s Settings) Validate() error {
	if math.IsNaN(s.Creativity) || s.Creativity < MinCreativity || s.Creativity > MaxCreativity {
		return errors.Wrapf(ErrCreativityOutOfRange, "got %.2f", s.Creativity)
	}
	return nil
}

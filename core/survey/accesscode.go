package survey

import (
	"context"
	"crypto/rand"
	"io"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

const (
	AccessCodeLength          = 4
	AccessCodeAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultAccessCodeAttempts = 100
)

var (
	// ErrAccessCodesExhausted is returned when no unused code was found within the attempt budget.
	ErrAccessCodesExhausted = errors.New("unable to generate unique access code")
	// ErrAccessCodeTaken is returned by the Repository when a user is stored with a code already in use.
	ErrAccessCodeTaken = errors.New("access code already in use")
)

// NormalizeAccessCode trims and upper-cases a user supplied access code.
func NormalizeAccessCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CodeGenerator draws access codes uniformly from AccessCodeAlphabet.
type CodeGenerator struct {
	Attempts int
	Rand     io.Reader // crypto/rand.Reader when nil
}

func NewCodeGenerator(attempts int) CodeGenerator {
	if attempts <= 0 {
		attempts = DefaultAccessCodeAttempts
	}
	return CodeGenerator{Attempts: attempts}
}

func (g CodeGenerator) candidate() (string, error) {
	rdr := g.Rand
	if rdr == nil {
		rdr = rand.Reader
	}
	max := big.NewInt(int64(len(AccessCodeAlphabet)))

	var sb strings.Builder
	sb.Grow(AccessCodeLength)
	for i := 0; i < AccessCodeLength; i++ {
		n, err := rand.Int(rdr, max)
		if err != nil {
			return "", errors.Wrap(err, "reading random source")
		}
		sb.WriteByte(AccessCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// Generate returns a code for which `taken` reports false, trying at most g.Attempts candidates.
func (g CodeGenerator) Generate(ctx context.Context, taken func(ctx context.Context, code string) (bool, error)) (string, error) {
	attempts := g.Attempts
	if attempts <= 0 {
		attempts = DefaultAccessCodeAttempts
	}

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := g.candidate()
		if err != nil {
			return "", err
		}
		used, err := taken(ctx, code)
		if err != nil {
			return "", errors.Wrap(err, "checking access code")
		}
		if !used {
			return code, nil
		}
	}
	return "", ErrAccessCodesExhausted
}

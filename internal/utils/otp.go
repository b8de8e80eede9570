package utils

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// CodeDigits is the width of a reset code.
const CodeDigits = 6

var codeSpace = big.NewInt(1_000_000)

// NewResetCode returns a six digit code drawn uniformly from 000000-999999.
func NewResetCode() (string, error) {
	return NewResetCodeFrom(rand.Reader)
}

// NewResetCodeFrom draws the code from r.
func NewResetCodeFrom(r io.Reader) (string, error) {
	n, err := rand.Int(r, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeDigits, n.Int64()), nil
}

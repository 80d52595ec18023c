package model

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

// DefaultReferencePrefix is used when no prefix is configured.
const DefaultReferencePrefix = "FRY"

const (
	referenceLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	referenceDigits  = "0123456789"
)

var referencePattern = regexp.MustCompile(`^[A-Z]{2,8}-[A-Z]{2}[0-9]{3}[A-Z]{2}$`)

// NewReference returns a booking reference of the form PREFIX-XXNNNYY,
// with every character drawn uniformly from crypto/rand.
func NewReference(prefix string) (string, error) {
	if prefix == "" {
		prefix = DefaultReferencePrefix
	}
	buf := make([]byte, 0, 7)
	for _, alphabet := range []string{
		referenceLetters, referenceLetters,
		referenceDigits, referenceDigits, referenceDigits,
		referenceLetters, referenceLetters,
	} {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", fmt.Errorf("generate reference: %w", err)
		}
		buf = append(buf, alphabet[n.Int64()])
	}
	return prefix + "-" + string(buf), nil
}

// ValidReference reports whether ref has the PREFIX-XXNNNYY shape.
func ValidReference(ref string) bool {
	return referencePattern.MatchString(ref)
}

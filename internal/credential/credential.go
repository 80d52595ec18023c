// Package credential issues and verifies the signed tokens printed on
// tickets.  Tokens are ES256 JWTs: the private key stays with the booking
// service, while gate scanners only need the public key to reject forged
// or expired tickets before the authoritative lookup.
package credential

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/ferry-reservation/internal/clock"
)

var (
	// ErrInvalidCredential is returned when the signature does not verify
	// or the token was signed with an unexpected algorithm.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrExpiredCredential is returned when the token's exp has passed.
	ErrExpiredCredential = errors.New("expired credential")
	// ErrMalformedCredential is returned when the token cannot be parsed or
	// lacks a required claim.
	ErrMalformedCredential = errors.New("malformed credential")
	// ErrSigningUnavailable is returned by Issue when the service was built
	// with only a public key.
	ErrSigningUnavailable = errors.New("credential signing key not configured")
)

// DefaultTTL is the lifetime of a ticket credential.
const DefaultTTL = 24 * time.Hour

// Claims is the data bound to a ticket by the signature.
type Claims struct {
	TicketID  string
	BookingID string
	Passenger string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type ticketClaims struct {
	BookingID string `json:"booking_id"`
	Passenger string `json:"passenger"`
	jwt.RegisteredClaims
}

// Service signs and verifies ticket credentials.
type Service struct {
	priv   *ecdsa.PrivateKey
	pub    *ecdsa.PublicKey
	clock  clock.Clock
	parser *jwt.Parser
}

// NewService builds a credential service.  priv may be nil for a
// verify-only service; pub is required.
func NewService(priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey, clk clock.Clock) (*Service, error) {
	if pub == nil && priv != nil {
		pub = &priv.PublicKey
	}
	if pub == nil {
		return nil, errors.New("credential: public key is required")
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{
		priv:  priv,
		pub:   pub,
		clock: clk,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(clk.Now),
		),
	}, nil
}

// Issue signs a credential for ticketID binding bookingID and passenger.
// A non-positive ttl yields a credential that is already expired.
func (s *Service) Issue(ticketID, bookingID, passenger string, ttl time.Duration) (string, error) {
	if s.priv == nil {
		return "", ErrSigningUnavailable
	}
	now := s.clock.Now().UTC()
	claims := ticketClaims{
		BookingID: bookingID,
		Passenger: passenger,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ticketID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(s.priv)
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token and returns its claims.
// The error is always one of ErrInvalidCredential, ErrExpiredCredential or
// ErrMalformedCredential.
func (s *Service) Verify(token string) (Claims, error) {
	var tc ticketClaims
	_, err := s.parser.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return s.pub, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrExpiredCredential
	case errors.Is(err, jwt.ErrTokenMalformed):
		return Claims{}, ErrMalformedCredential
	default:
		return Claims{}, ErrInvalidCredential
	}
	if tc.BookingID == "" || tc.Passenger == "" || tc.ID == "" || tc.IssuedAt == nil {
		return Claims{}, ErrMalformedCredential
	}
	return Claims{
		TicketID:  tc.ID,
		BookingID: tc.BookingID,
		Passenger: tc.Passenger,
		IssuedAt:  tc.IssuedAt.Time,
		ExpiresAt: tc.ExpiresAt.Time,
	}, nil
}

// LoadKeys reads PEM encoded EC keys from disk.  An empty privPath gives a
// verify-only key set; an empty pubPath derives the public key from the
// private one.
func LoadKeys(privPath, pubPath string) (*ecdsa.PrivateKey, *ecdsa.PublicKey, error) {
	var priv *ecdsa.PrivateKey
	if privPath != "" {
		raw, err := os.ReadFile(privPath)
		if err != nil {
			return nil, nil, fmt.Errorf("read private key: %w", err)
		}
		if priv, err = jwt.ParseECPrivateKeyFromPEM(raw); err != nil {
			return nil, nil, fmt.Errorf("parse private key: %w", err)
		}
	}
	var pub *ecdsa.PublicKey
	if pubPath != "" {
		raw, err := os.ReadFile(pubPath)
		if err != nil {
			return nil, nil, fmt.Errorf("read public key: %w", err)
		}
		if pub, err = jwt.ParseECPublicKeyFromPEM(raw); err != nil {
			return nil, nil, fmt.Errorf("parse public key: %w", err)
		}
	} else if priv != nil {
		pub = &priv.PublicKey
	}
	if pub == nil {
		return nil, nil, errors.New("no ticket signing keys configured")
	}
	return priv, pub, nil
}

// Package reference mints the human-shareable tokens that identify a payment
// attempt end-to-end, including at the gateway.
package reference

import (
	"context"
	"errors"
	"strings"

	"github.com/brightmoja/memberpay/internal/payment/domain"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

const (
	prefix = "MP"
	// suffixLen Crockford base32 characters carry 50 bits of entropy.
	suffixLen   = 10
	maxAttempts = 5
)

var ErrExhausted = errors.New("reference_space_exhausted")

type Generator struct {
	db   *gorm.DB
	repo domain.Repository
}

func NewGenerator(db *gorm.DB, repo domain.Repository) *Generator {
	return &Generator{db: db, repo: repo}
}

// Generate returns a reference guaranteed not to exist in the store at the
// time of the check. The caller persists it; the unique index on reference
// remains the final arbiter.
func (g *Generator) Generate(ctx context.Context, purpose domain.Purpose, session string) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := Format(purpose, session, randomSuffix())

		exists, err := g.repo.ReferenceExists(ctx, g.db, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

// Format assembles a reference from its parts.
func Format(purpose domain.Purpose, session, suffix string) string {
	parts := []string{prefix, purposeTag(purpose)}
	if tag := sessionTag(session); tag != "" {
		parts = append(parts, tag)
	}
	parts = append(parts, suffix)
	return strings.Join(parts, "-")
}

func purposeTag(purpose domain.Purpose) string {
	switch purpose {
	case domain.PurposeMembershipFee:
		return "MEM"
	case domain.PurposeSessionDues:
		return "DUES"
	default:
		return "PAY"
	}
}

func sessionTag(session string) string {
	session = strings.TrimSpace(session)
	if session == "" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z':
			return r
		case r >= 'a' && r <= 'z':
			return r - ('a' - 'A')
		default:
			return -1
		}
	}, session)
}

// randomSuffix takes the trailing characters of a ULID, which encode the
// random payload rather than the timestamp.
func randomSuffix() string {
	id := ulid.Make().String()
	return id[len(id)-suffixLen:]
}

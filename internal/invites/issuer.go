package invites

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"

	"github.com/SynisterSage/verityapp-sub001/internal/metrics"
)

// codeAlphabet holds 32 symbols with the visually confusable 0/O and 1/I
// removed. 32 divides 256, so a byte modulo the alphabet stays uniform.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	codeSymbols      = 8
	codeGroup        = 4
	maxIssueAttempts = 6
)

// CodeChecker reports whether a short code already exists in the shared
// invite namespace.
type CodeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// Issuer draws candidate codes and checks them against the namespace. The
// check is point-in-time, not a reservation: the store's unique constraint
// remains the backstop at insert time.
type Issuer struct {
	checker CodeChecker
	logger  *slog.Logger
}

func NewIssuer(log *slog.Logger, checker CodeChecker) *Issuer {
	return &Issuer{
		checker: checker,
		logger:  log.With(slog.String("component", "invites.issuer")),
	}
}

// Issue returns a code unused at the moment of the check. After
// maxIssueAttempts collisions it returns ErrCodeSpaceExhausted; store errors
// propagate as-is.
func (i *Issuer) Issue(ctx context.Context, profileID string) (string, error) {
	if i.checker == nil {
		return "", fmt.Errorf("invite code checker not configured")
	}
	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		exists, err := i.checker.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check invite code: %w", err)
		}
		if !exists {
			return code, nil
		}
		metrics.InviteCodeCollisions.Inc()
		i.logger.Warn("invite code collision",
			slog.String("profile_id", profileID),
			slog.Int("attempt", attempt),
		)
	}
	return "", ErrCodeSpaceExhausted
}

func randomCode() (string, error) {
	buf := make([]byte, codeSymbols)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	out := make([]byte, 0, codeSymbols+1)
	for i, b := range buf {
		if i == codeGroup {
			out = append(out, '-')
		}
		out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
	}
	return string(out), nil
}

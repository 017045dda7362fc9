// Package confirmation issues guest-facing confirmation codes of the form
// <PREFIX><YYYYMMDD><NNNN>, sequential within one calendar day.
package confirmation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	sequenceDigits = 4
	maxSequence    = 9999
	dateLayout     = "20060102"
)

var ErrSequenceExhausted = errors.New("confirmation code sequence exhausted for the day")

// Source is read and advanced inside the transaction that inserts the new code.
// LatestConfirmationCode returns the greatest stored code with the given prefix,
// or "". IssueConfirmationSequence records a sequence number as issued for the
// day, so numbers freed by deleted reservations are never handed out again.
type Source interface {
	LatestConfirmationCode(ctx context.Context, prefix string) (string, error)
	IssueConfirmationSequence(ctx context.Context, dayPrefix string, floor int) (int, error)
}

type Generator struct {
	prefix string
	loc    *time.Location
	now    func() time.Time
}

func NewGenerator(prefix string, loc *time.Location, now func() time.Time) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{prefix: strings.ToUpper(prefix), loc: loc, now: now}
}

// DayPrefix is the prefix shared by every code issued on the current day.
func (g *Generator) DayPrefix() string {
	return g.prefix + g.now().In(g.loc).Format(dateLayout)
}

func (g *Generator) Next(ctx context.Context, src Source) (string, error) {
	dayPrefix := g.DayPrefix()

	latest, err := src.LatestConfirmationCode(ctx, dayPrefix)
	if err != nil {
		return "", fmt.Errorf("read latest confirmation code: %w", err)
	}

	floor := 1
	if latest != "" {
		last, err := parseSequence(latest, dayPrefix)
		if err != nil {
			return "", err
		}
		floor = last + 1
	}
	seq, err := src.IssueConfirmationSequence(ctx, dayPrefix, floor)
	if err != nil {
		return "", fmt.Errorf("issue confirmation sequence: %w", err)
	}
	if seq > maxSequence {
		return "", ErrSequenceExhausted
	}
	return fmt.Sprintf("%s%0*d", dayPrefix, sequenceDigits, seq), nil
}

func parseSequence(code, dayPrefix string) (int, error) {
	suffix := strings.TrimPrefix(code, dayPrefix)
	if len(suffix) != sequenceDigits {
		return 0, fmt.Errorf("malformed confirmation code %q", code)
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("malformed confirmation code %q", code)
	}
	return n, nil
}

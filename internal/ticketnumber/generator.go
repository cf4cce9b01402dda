// Package ticketnumber allocates human-readable ticket numbers of the form
// TKT-YYYYMMDD-NNNN, sequential within a calendar day.
package ticketnumber

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const (
	prefix     = "TKT-"
	dateLayout = "20060102"
)

// SequenceSource hands out the next sequence number for a day prefix such as
// "TKT-20251112". Implementations must never return the same value twice for
// the same prefix; gaps are allowed.
type SequenceSource interface {
	NextSequence(ctx context.Context, dayPrefix string) (int, error)
}

// Seeder is implemented by sources kept outside the ticket store. Seed raises
// the source so its next value is above floor.
type Seeder interface {
	Seed(ctx context.Context, dayPrefix string, floor int) error
}

// SequenceFunc adapts a function to SequenceSource.
type SequenceFunc func(ctx context.Context, dayPrefix string) (int, error)

// NextSequence calls f.
func (f SequenceFunc) NextSequence(ctx context.Context, dayPrefix string) (int, error) {
	return f(ctx, dayPrefix)
}

// Generator formats ticket numbers in a fixed location.
type Generator struct {
	loc *time.Location
}

// NewGenerator builds a generator whose calendar day is evaluated in loc.
// A nil loc means UTC.
func NewGenerator(loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{loc: loc}
}

// Location returns the timezone used for day boundaries.
func (g *Generator) Location() *time.Location {
	return g.loc
}

// DayPrefix returns "TKT-YYYYMMDD" for now.
func (g *Generator) DayPrefix(now time.Time) string {
	return prefix + now.In(g.loc).Format(dateLayout)
}

// Generate allocates the next number for the day containing now.
func (g *Generator) Generate(ctx context.Context, now time.Time, src SequenceSource) (string, error) {
	dayPrefix := g.DayPrefix(now)
	seq, err := src.NextSequence(ctx, dayPrefix)
	if err != nil {
		return "", fmt.Errorf("allocate ticket sequence: %w", err)
	}
	if seq <= 0 {
		return "", fmt.Errorf("%w: non-positive ticket sequence %d", domain.ErrInvariantViolation, seq)
	}
	return Format(dayPrefix, seq), nil
}

// Assign stamps ticket.TicketNumber unless it is already set.
func (g *Generator) Assign(ctx context.Context, ticket *domain.Ticket, now time.Time, src SequenceSource) error {
	if ticket.TicketNumber != "" {
		return nil
	}
	number, err := g.Generate(ctx, now, src)
	if err != nil {
		return err
	}
	ticket.TicketNumber = number
	return nil
}

// Format joins a day prefix and a sequence number, zero padded to four digits.
func Format(dayPrefix string, seq int) string {
	return fmt.Sprintf("%s-%04d", dayPrefix, seq)
}

// Parse splits a ticket number into its day prefix and sequence.
func Parse(number string) (string, int, error) {
	if !strings.HasPrefix(number, prefix) {
		return "", 0, fmt.Errorf("%w: ticket number %q", domain.ErrValidation, number)
	}
	idx := strings.LastIndex(number, "-")
	dayPrefix, rawSeq := number[:idx], number[idx+1:]
	if len(dayPrefix) != len(prefix)+len(dateLayout) || len(rawSeq) < 4 {
		return "", 0, fmt.Errorf("%w: ticket number %q", domain.ErrValidation, number)
	}
	if _, err := time.Parse(dateLayout, strings.TrimPrefix(dayPrefix, prefix)); err != nil {
		return "", 0, fmt.Errorf("%w: ticket number %q", domain.ErrValidation, number)
	}
	seq, err := strconv.Atoi(rawSeq)
	if err != nil || seq <= 0 {
		return "", 0, fmt.Errorf("%w: ticket number %q", domain.ErrValidation, number)
	}
	return dayPrefix, seq, nil
}

// SequenceOf returns the numeric suffix of number for the given day prefix, or
// false when number belongs to a different day or is malformed.
func SequenceOf(number, dayPrefix string) (int, bool) {
	got, seq, err := Parse(number)
	if err != nil || got != dayPrefix {
		return 0, false
	}
	return seq, true
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bimakw/collective-ledger/internal/domain/entities"
	"github.com/bimakw/collective-ledger/internal/domain/ledger"
	"github.com/bimakw/collective-ledger/internal/domain/repositories"
)

var (
	// ErrCollectiveNotFound is returned when no collective has the requested slug
	ErrCollectiveNotFound = errors.New("collective not found")

	// ErrInvalidPeriod is returned for out of range years or months
	ErrInvalidPeriod = errors.New("invalid period")
)

// DefaultReferenceCurrency is used when a collective has no primary currency
const DefaultReferenceCurrency = "USD"

// Period is a calendar month, or a whole year when Month is zero. Bounds are UTC.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month,omitempty"`
}

// CurrentMonth returns the period containing now
func CurrentMonth(now time.Time) Period {
	now = now.UTC()
	return Period{Year: now.Year(), Month: int(now.Month())}
}

// Validate checks the year and month ranges
func (p Period) Validate() error {
	if p.Year < 1970 || p.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, p.Year)
	}
	if p.Month < 0 || p.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, p.Month)
	}
	return nil
}

// Range returns the half-open interval [from, to) covered by the period
func (p Period) Range() (time.Time, time.Time) {
	if p.Month == 0 {
		from := time.Date(p.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(1, 0, 0)
	}
	from := time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// collectiveContext bundles what every per-collective query needs
type collectiveContext struct {
	collective *entities.Collective
	home       ledger.AddressSet
	reference  string
}

func loadCollective(ctx context.Context, repo repositories.CollectiveRepository, slug string) (*collectiveContext, error) {
	c, err := repo.GetBySlug(ctx, strings.ToLower(slug))
	if err != nil {
		return nil, fmt.Errorf("failed to get collective: %w", err)
	}
	if c == nil {
		return nil, ErrCollectiveNotFound
	}

	reference := strings.ToUpper(c.PrimaryCurrency)
	if reference == "" {
		reference = DefaultReferenceCurrency
	}

	return &collectiveContext{
		collective: c,
		home:       ledger.NewAddressSet(c.HomeAddresses()...),
		reference:  reference,
	}, nil
}

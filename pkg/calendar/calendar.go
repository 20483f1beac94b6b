// Package calendar answers whether a date is a working day in a country.
//
// Statutory holidays come from the rickar/cal country rule sets. Extra dates
// (company closures, regional days) can be added per country with an
// explicit category.
package calendar

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/at"
	"github.com/rickar/cal/v2/be"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/es"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/it"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/us"
)

// Category classifies a holiday.
type Category string

const (
	CategoryPublic     Category = "public"
	CategoryBank       Category = "bank"
	CategoryOptional   Category = "optional"
	CategoryObservance Category = "observance"
)

// DefaultCategories are the categories treated as non-working days.
var DefaultCategories = []Category{CategoryPublic, CategoryBank, CategoryOptional}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryPublic, CategoryBank, CategoryOptional, CategoryObservance:
		return c, nil
	default:
		return "", fmt.Errorf("unknown holiday category %q", s)
	}
}

// Holiday is a single dated holiday.
type Holiday struct {
	Country  string
	Date     time.Time
	Name     string
	Category Category
}

var rules = map[string][]*cal.Holiday{
	"AT": at.Holidays,
	"BE": be.Holidays,
	"DE": de.Holidays,
	"ES": es.Holidays,
	"FR": fr.Holidays,
	"GB": gb.Holidays,
	"IT": it.Holidays,
	"NL": nl.Holidays,
	"US": us.Holidays,
}

// Countries returns the country codes with built-in rule sets.
func Countries() []string {
	out := make([]string, 0, len(rules))
	for c := range rules {
		out = append(out, c)
	}
	return out
}

type dayKey struct {
	country string
	year    int
	month   time.Month
	day     int
}

func keyOf(country string, t time.Time) dayKey {
	y, m, d := t.Date()
	return dayKey{country: country, year: y, month: m, day: d}
}

// Calendar resolves holidays per country. It is safe for concurrent use.
type Calendar struct {
	enabled map[Category]bool
	extra   map[dayKey]Holiday

	mu    sync.Mutex
	years map[string]map[int]bool
	days  map[dayKey][]Holiday
}

// Option configures a Calendar.
type Option func(*Calendar)

// WithCategories replaces the set of categories counted as non-working days.
func WithCategories(categories ...Category) Option {
	return func(c *Calendar) {
		c.enabled = make(map[Category]bool, len(categories))
		for _, cat := range categories {
			c.enabled[cat] = true
		}
	}
}

// WithExtra adds dated holidays on top of the built-in rules.
func WithExtra(holidays ...Holiday) Option {
	return func(c *Calendar) {
		for _, h := range holidays {
			country := strings.ToUpper(h.Country)
			h.Country = country
			c.extra[keyOf(country, h.Date)] = h
		}
	}
}

// New creates a calendar using DefaultCategories unless overridden.
func New(opts ...Option) *Calendar {
	c := &Calendar{
		extra: make(map[dayKey]Holiday),
		years: make(map[string]map[int]bool),
		days:  make(map[dayKey][]Holiday),
	}
	WithCategories(DefaultCategories...)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HolidaysOn returns every holiday of any category on day in country.
func (c *Calendar) HolidaysOn(country string, day time.Time) []Holiday {
	country = strings.ToUpper(country)
	key := keyOf(country, day)

	c.mu.Lock()
	c.loadYear(country, key.year)
	found := append([]Holiday(nil), c.days[key]...)
	c.mu.Unlock()

	if h, ok := c.extra[key]; ok {
		found = append(found, h)
	}
	return found
}

// IsNonWorkingDay reports whether day is a holiday of an enabled category.
// Weekends are not considered; callers skip them.
func (c *Calendar) IsNonWorkingDay(country string, day time.Time) bool {
	for _, h := range c.HolidaysOn(country, day) {
		if c.enabled[h.Category] {
			return true
		}
	}
	return false
}

// loadYear expands the rule set of country for year. Caller holds c.mu.
func (c *Calendar) loadYear(country string, year int) {
	loaded, ok := c.years[country]
	if !ok {
		loaded = make(map[int]bool)
		c.years[country] = loaded
	}
	if loaded[year] {
		return
	}
	loaded[year] = true

	for _, rule := range rules[country] {
		actual, observed := rule.Calc(year)
		if actual.IsZero() {
			continue
		}
		h := Holiday{Country: country, Name: rule.Name, Category: categoryOf(rule.Type)}

		h.Date = actual
		c.days[keyOf(country, actual)] = append(c.days[keyOf(country, actual)], h)
		if !observed.IsZero() && keyOf(country, observed) != keyOf(country, actual) {
			h.Date = observed
			c.days[keyOf(country, observed)] = append(c.days[keyOf(country, observed)], h)
		}
	}
}

func categoryOf(t cal.ObservanceType) Category {
	switch t {
	case cal.ObservancePublic:
		return CategoryPublic
	case cal.ObservanceBank:
		return CategoryBank
	default:
		return CategoryObservance
	}
}

// ParseExtra parses entries of the form "CC:YYYY-MM-DD:category".
// The category may be omitted and defaults to optional.
func ParseExtra(entries []string) ([]Holiday, error) {
	out := make([]Holiday, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("holiday %q: want CC:YYYY-MM-DD[:category]", entry)
		}
		date, err := time.Parse(time.DateOnly, parts[1])
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", entry, err)
		}
		cat := CategoryOptional
		if len(parts) == 3 {
			if cat, err = ParseCategory(parts[2]); err != nil {
				return nil, fmt.Errorf("holiday %q: %w", entry, err)
			}
		}
		out = append(out, Holiday{
			Country:  strings.ToUpper(parts[0]),
			Date:     date,
			Name:     "extra",
			Category: cat,
		})
	}
	return out, nil
}

// Package validate holds the input checks used by SecretaryBot prompts: phone
// numbers, work email addresses, autoreply date ranges and report period
// codes.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the date format produced by the autoreply form.
const DateLayout = "2006-01-02"

// Report period limits.
const (
	// MinReportYear is the first year reports exist for.
	MinReportYear = 2016
	// MaxPeriods is the largest number of period codes one request may carry.
	MaxPeriods = 4
	// phoneLength is the length of a normalized +7 number.
	phoneLength = 12
)

var (
	ErrPeriodFormat   = errors.New("period code must look like 2019Q1")
	ErrPeriodBound    = errors.New("period is later than the latest available report")
	ErrTooManyPeriods = errors.New("too many periods requested")
)

var (
	periodRegex = regexp.MustCompile(`^(\d{4})Q([1-4])$`)
	emailRegex  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// WorkEmail reports whether addr is an email address ending in domain, for
// example "@tikkurila.com". An empty domain accepts any address.
func WorkEmail(addr, domain string) bool {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if !emailRegex.MatchString(addr) {
		return false
	}
	return domain == "" || strings.HasSuffix(addr, strings.ToLower(domain))
}

// NormalizePhone strips dashes and rewrites a leading 8 as +7.
func NormalizePhone(phone string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(phone), "-", "")
	if strings.HasPrefix(cleaned, "8") {
		cleaned = "+7" + cleaned[1:]
	}
	return cleaned
}

// Phone reports whether phone is acceptable. An empty phone is valid because
// the field is optional.
func Phone(phone string) bool {
	if strings.TrimSpace(phone) == "" {
		return true
	}
	return len(NormalizePhone(phone)) == phoneLength
}

// PrettyPhone formats a valid phone as +7-926-123-45-67.
func PrettyPhone(phone string) string {
	p := NormalizePhone(phone)
	if len(p) != phoneLength {
		return p
	}
	return p[0:2] + "-" + p[2:5] + "-" + p[5:8] + "-" + p[8:10] + "-" + p[10:12]
}

// DateRange reports whether both dates parse and end is not before start.
func DateRange(start, end string) bool {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return false
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return false
	}
	return !e.Before(s)
}

// Period is a reporting quarter.
type Period struct {
	Year    int
	Quarter int
}

// ParsePeriod parses a code such as "2024Q2". Lowercase q is accepted.
func ParsePeriod(code string) (Period, error) {
	m := periodRegex.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(code)))
	if m == nil {
		return Period{}, fmt.Errorf("%w: %q", ErrPeriodFormat, code)
	}
	year, _ := strconv.Atoi(m[1])
	quarter, _ := strconv.Atoi(m[2])
	return Period{Year: year, Quarter: quarter}, nil
}

// Ordinal orders periods as year*10+quarter.
func (p Period) Ordinal() int {
	return p.Year*10 + p.Quarter
}

func (p Period) String() string {
	return fmt.Sprintf("%dQ%d", p.Year, p.Quarter)
}

// Periods parses a comma separated list of period codes and checks each one
// against bound: the year must lie in MinReportYear..bound.Year and the
// period must not be later than bound. At most MaxPeriods codes are allowed.
func Periods(input string, bound Period) ([]Period, error) {
	tokens := strings.Split(strings.ReplaceAll(input, " ", ""), ",")
	periods := make([]Period, 0, len(tokens))
	for _, tok := range tokens {
		p, err := ParsePeriod(tok)
		if err != nil {
			return nil, err
		}
		if p.Year < MinReportYear || p.Year > bound.Year {
			return nil, fmt.Errorf("%w: year %d", ErrPeriodFormat, p.Year)
		}
		periods = append(periods, p)
	}
	for _, p := range periods {
		if p.Ordinal() > bound.Ordinal() {
			return nil, fmt.Errorf("%w: %s > %s", ErrPeriodBound, p, bound)
		}
	}
	if len(periods) > MaxPeriods {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyPeriods, len(periods), MaxPeriods)
	}
	return periods, nil
}

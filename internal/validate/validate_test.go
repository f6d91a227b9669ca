package validate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"", true},
		{"89261234567", true},
		{"8-926-123-45-67", true},
		{"+79261234567", true},
		{"12345", false},
		{"+7926123456", false},
	}
	for _, tt := range tests {
		if got := Phone(tt.phone); got != tt.want {
			t.Errorf("Phone(%q) = %v, want %v", tt.phone, got, tt.want)
		}
	}
}

func TestWorkEmail(t *testing.T) {
	tests := []struct {
		addr   string
		domain string
		want   bool
	}{
		{"ivan.petrov@tikkurila.com", "@tikkurila.com", true},
		{"  Ivan.Petrov@Tikkurila.COM ", "@tikkurila.com", true},
		{"ivan@gmail.com", "@tikkurila.com", false},
		{"ivan@gmail.com", "", true},
		{"ivan.petrov", "@tikkurila.com", false},
		{"ivan petrov@tikkurila.com", "@tikkurila.com", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := WorkEmail(tt.addr, tt.domain); got != tt.want {
			t.Errorf("WorkEmail(%q, %q) = %v, want %v", tt.addr, tt.domain, got, tt.want)
		}
	}
}

func TestNormalizeAndPrettyPhone(t *testing.T) {
	if got := NormalizePhone("89261234567"); got != "+79261234567" {
		t.Errorf("NormalizePhone = %q", got)
	}
	if got := PrettyPhone("8-926-123-45-67"); got != "+7-926-123-45-67" {
		t.Errorf("PrettyPhone = %q", got)
	}
}

func TestDateRange(t *testing.T) {
	tests := []struct {
		start, end string
		want       bool
	}{
		{"2024-01-10", "2024-01-09", false},
		{"2024-01-09", "2024-01-09", true},
		{"2024-01-09", "2024-01-10", true},
		{"2024-13-01", "2024-01-10", false},
		{"", "2024-01-10", false},
		{"2024-01-09", "10.01.2024", false},
	}
	for _, tt := range tests {
		if got := DateRange(tt.start, tt.end); got != tt.want {
			t.Errorf("DateRange(%q, %q) = %v, want %v", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestPeriods(t *testing.T) {
	bound := Period{Year: 2024, Quarter: 2}
	tests := []struct {
		name    string
		input   string
		want    []Period
		wantErr error
	}{
		{"two valid", "2024Q1,2024Q2", []Period{{2024, 1}, {2024, 2}}, nil},
		{"spaces and lowercase", " 2019q4, 2020Q1 ", []Period{{2019, 4}, {2020, 1}}, nil},
		{"beyond bound", "2024Q3", nil, ErrPeriodBound},
		{"quarter zero", "2016Q0", nil, ErrPeriodFormat},
		{"before first year", "2015Q4", nil, ErrPeriodFormat},
		{"after bound year", "2025Q1", nil, ErrPeriodFormat},
		{"five tokens", "2020Q1,2020Q2,2020Q3,2020Q4,2021Q1", nil, ErrTooManyPeriods},
		{"four tokens", "2020Q1,2020Q2,2020Q3,2020Q4", []Period{{2020, 1}, {2020, 2}, {2020, 3}, {2020, 4}}, nil},
		{"empty token", "2020Q1,", nil, ErrPeriodFormat},
		{"garbage", "вчера", nil, ErrPeriodFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Periods(tt.input, bound)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Periods(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Periods(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestParsePeriodString(t *testing.T) {
	p, err := ParsePeriod("2023q3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.String() != "2023Q3" || p.Ordinal() != 20233 {
		t.Errorf("unexpected period %v (%d)", p, p.Ordinal())
	}
}

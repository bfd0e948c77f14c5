package taxyear

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Jurisdiction selects which fiscal-year boundary rules apply.
type Jurisdiction string

const (
	UK Jurisdiction = "UK" // 6 April to 5 April
	SA Jurisdiction = "SA" // 1 March to end of February
)

// Valid reports whether j is a known jurisdiction.
func (j Jurisdiction) Valid() bool {
	return j == UK || j == SA
}

// TaxYear is one jurisdiction's fiscal year, identified by the calendar year it starts in.
// The zero value is not valid; construct via ForDate or FromLabel.
type TaxYear struct {
	jurisdiction Jurisdiction
	startYear    int
}

// ForDate resolves the tax year containing the given date.
func ForDate(j Jurisdiction, date time.Time) (TaxYear, error) {
	if !j.Valid() {
		return TaxYear{}, fmt.Errorf("unknown jurisdiction %q", j)
	}

	year := date.Year()
	switch j {
	case UK:
		// Before 6 April the date falls in the previous fiscal year.
		boundary := time.Date(year, time.April, 6, 0, 0, 0, 0, time.UTC)
		if date.Before(boundary) {
			year--
		}
	case SA:
		boundary := time.Date(year, time.March, 1, 0, 0, 0, 0, time.UTC)
		if date.Before(boundary) {
			year--
		}
	}
	return TaxYear{jurisdiction: j, startYear: year}, nil
}

// FromLabel parses a tax-year label: UK "2024/25", SA "2025" (named by the calendar
// year the fiscal year ends in).
func FromLabel(j Jurisdiction, label string) (TaxYear, error) {
	if !j.Valid() {
		return TaxYear{}, fmt.Errorf("unknown jurisdiction %q", j)
	}

	switch j {
	case UK:
		parts := strings.Split(label, "/")
		if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
			return TaxYear{}, fmt.Errorf("invalid UK tax year label %q: want YYYY/YY", label)
		}
		start, err := strconv.Atoi(parts[0])
		if err != nil {
			return TaxYear{}, fmt.Errorf("invalid UK tax year label %q: %w", label, err)
		}
		if parts[1] != fmt.Sprintf("%02d", (start+1)%100) {
			return TaxYear{}, fmt.Errorf("invalid UK tax year label %q: suffix does not follow %d", label, start)
		}
		return TaxYear{jurisdiction: UK, startYear: start}, nil
	default:
		end, err := strconv.Atoi(label)
		if err != nil || len(label) != 4 {
			return TaxYear{}, fmt.Errorf("invalid SA tax year label %q: want YYYY", label)
		}
		return TaxYear{jurisdiction: SA, startYear: end - 1}, nil
	}
}

// Jurisdiction returns the tax year's jurisdiction.
func (ty TaxYear) Jurisdiction() Jurisdiction {
	return ty.jurisdiction
}

// StartYear returns the calendar year the tax year starts in.
func (ty TaxYear) StartYear() int {
	return ty.startYear
}

// Start returns the first day of the tax year (inclusive).
func (ty TaxYear) Start() time.Time {
	if ty.jurisdiction == SA {
		return time.Date(ty.startYear, time.March, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(ty.startYear, time.April, 6, 0, 0, 0, 0, time.UTC)
}

// End returns the first day of the following tax year. The range is half-open:
// a date d is in the year iff !d.Before(Start()) && d.Before(End()).
func (ty TaxYear) End() time.Time {
	return ty.Next().Start()
}

// Contains reports whether the given date falls within the tax year.
func (ty TaxYear) Contains(date time.Time) bool {
	return !date.Before(ty.Start()) && date.Before(ty.End())
}

// Prev returns the immediately preceding tax year.
func (ty TaxYear) Prev() TaxYear {
	return TaxYear{jurisdiction: ty.jurisdiction, startYear: ty.startYear - 1}
}

// Next returns the immediately following tax year.
func (ty TaxYear) Next() TaxYear {
	return TaxYear{jurisdiction: ty.jurisdiction, startYear: ty.startYear + 1}
}

// Label returns the conventional name of the tax year: "2024/25" for the UK,
// "2025" for SA (SA years are named by the calendar year they end in).
func (ty TaxYear) Label() string {
	if ty.jurisdiction == SA {
		return strconv.Itoa(ty.startYear + 1)
	}
	return fmt.Sprintf("%d/%02d", ty.startYear, (ty.startYear+1)%100)
}

// String returns the label.
func (ty TaxYear) String() string {
	return ty.Label()
}

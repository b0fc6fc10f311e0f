package ledger

import (
	"fmt"
	"strconv"
	"time"
)

// dateLayout is the wire format for all dates in the ledger.
const dateLayout = "2006-01-02"

// MonthKey identifies a calendar month as "YYYY-MM".
type MonthKey string

// NewMonthKey derives the month key for a "YYYY-MM-DD" date string.
// The literal "today" resolves to the current month.
func NewMonthKey(date string) (MonthKey, error) {
	if date == "today" {
		return MonthKey(time.Now().Format("2006-01")), nil
	}
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return MonthKey(t.Format("2006-01")), nil
}

// Subtract steps back n months, rolling over year boundaries as often
// as needed.
func (m MonthKey) Subtract(n int) MonthKey {
	year, _ := strconv.Atoi(string(m[:4]))
	month, _ := strconv.Atoi(string(m[5:]))
	month -= n
	for month < 1 {
		month += 12
		year--
	}
	return MonthKey(fmt.Sprintf("%04d-%02d", year, month))
}

func (m MonthKey) String() string {
	return string(m)
}

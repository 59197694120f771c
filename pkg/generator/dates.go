package generator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var monthNumbers = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may":  5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sep": 9, "sept": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

var (
	monthRangeRe  = regexp.MustCompile(`(?:from\s+)?([a-z]+)\s+(\d{4})\s+to\s+([a-z]+)\s+(\d{4})`)
	singleMonthRe = regexp.MustCompile(`(?:in\s+)?([a-z]+)\s+(\d{4})`)
)

// ExplicitDateRange extracts a literal month/year range from a question.
// "July 2025 to December 2025" gives ("2025-07-01", "2026-01-01"); a single
// "December 2025" gives that month as a half-open range. The end date is
// exclusive, first day of the following month.
func ExplicitDateRange(question string) (start, end string, ok bool) {
	q := strings.ToLower(question)

	if m := monthRangeRe.FindStringSubmatch(q); m != nil {
		startMonth, okStart := monthNumbers[m[1]]
		endMonth, okEnd := monthNumbers[m[3]]
		if okStart && okEnd {
			endYear, _ := strconv.Atoi(m[4])
			return fmt.Sprintf("%s-%02d-01", m[2], startMonth),
				firstOfNextMonth(endYear, endMonth), true
		}
	}

	if m := singleMonthRe.FindStringSubmatch(q); m != nil {
		month, known := monthNumbers[m[1]]
		if known {
			year, _ := strconv.Atoi(m[2])
			return fmt.Sprintf("%s-%02d-01", m[2], month),
				firstOfNextMonth(year, month), true
		}
	}

	return "", "", false
}

func firstOfNextMonth(year, month int) string {
	month++
	if month > 12 {
		month = 1
		year++
	}
	return fmt.Sprintf("%d-%02d-01", year, month)
}

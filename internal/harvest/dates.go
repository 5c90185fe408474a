package harvest

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	daysPattern = regexp.MustCompile(`(\d+)\s*days?\b`)

	// "jan 31 - feb 3", "feb 4 - 7", "february 4 – 7"
	dateRangePattern = regexp.MustCompile(
		`\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})\s*[-–]\s*(?:\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s*)?(\d{1,2})`)

	// "jan 17", "january 17"
	singleDatePattern = regexp.MustCompile(
		`\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})\b`)

	monthIndex = map[string]time.Month{
		"jan": time.January, "feb": time.February, "mar": time.March,
		"apr": time.April, "may": time.May, "jun": time.June,
		"jul": time.July, "aug": time.August, "sep": time.September,
		"oct": time.October, "nov": time.November, "dec": time.December,
	}
)

// EstimateDayOffset interprets a free-text delivery estimate and returns the
// number of days from today until delivery. The bool is false when no pattern
// was recognized.
func EstimateDayOffset(text string, today time.Time) (int, bool) {
	lower := strings.ToLower(text)

	if strings.Contains(lower, "today") {
		return 0, true
	}
	if strings.Contains(lower, "tomorrow") {
		return 1, true
	}

	if m := daysPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, true
		}
	}

	if m := dateRangePattern.FindStringSubmatch(lower); m != nil {
		endMonth := m[3]
		if endMonth == "" {
			endMonth = m[1]
		}
		if offset, ok := offsetTo(endMonth, m[4], today); ok {
			return offset, true
		}
	}

	if m := singleDatePattern.FindStringSubmatch(lower); m != nil {
		if offset, ok := offsetTo(m[1], m[2], today); ok {
			return offset, true
		}
	}

	return 0, false
}

// CheckWithinBudget reports whether the estimate resolves to a delivery no
// more than maxDays away. Unparseable or past estimates never qualify.
func CheckWithinBudget(text string, maxDays int, today time.Time) bool {
	offset, ok := EstimateDayOffset(text, today)
	if !ok || offset < 0 {
		return false
	}
	return offset <= maxDays
}

// offsetTo returns the whole days from today to month/day, rolling into next
// year when that date has already passed.
func offsetTo(monthName, dayText string, today time.Time) (int, bool) {
	month, ok := monthIndex[monthName]
	if !ok {
		return 0, false
	}
	day, err := strconv.Atoi(dayText)
	if err != nil || day < 1 || day > 31 {
		return 0, false
	}

	// Civil dates in UTC so daylight saving never skews the difference
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	year := start.Year()
	if month < start.Month() || (month == start.Month() && day < start.Day()) {
		year++
	}

	target := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if target.Day() != day {
		// Feb 30 and friends
		return 0, false
	}

	return int(target.Sub(start).Hours() / 24), true
}

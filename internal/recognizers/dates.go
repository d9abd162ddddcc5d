// ABOUTME: Free-text date recognition for deadline prompts
// ABOUTME: Ambiguous input yields several candidates; the latest one wins

package recognizers

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDatePattern    = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDatePattern  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}))?\b`)
	inDurationPattern = regexp.MustCompile(`\bin (\d+) (day|days|week|weeks)\b`)
	monthDayPattern   = regexp.MustCompile(`\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?) (\d{1,2})(?:st|nd|rd|th)?\b`)
	weekdayPattern    = regexp.MustCompile(`\b(next )?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var weekdaysByName = map[string]time.Weekday{
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday, "sunday": time.Sunday,
}

// RecognizeDates extracts candidate dates from free text, resolved relative
// to now. Dates without a year resolve to the next future occurrence.
// Candidates are returned in the order they appear; an empty slice means no
// date was recognized.
func RecognizeDates(text string, now time.Time) []time.Time {
	lower := strings.ToLower(text)
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	}
	today := day(now.Year(), now.Month(), now.Day())

	var out []time.Time

	for _, m := range isoDatePattern.FindAllStringSubmatch(lower, -1) {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if t := day(y, time.Month(mo), d); t.Month() == time.Month(mo) && t.Day() == d {
			out = append(out, t)
		}
	}

	for _, m := range slashDatePattern.FindAllStringSubmatch(lower, -1) {
		mo, _ := strconv.Atoi(m[1])
		d, _ := strconv.Atoi(m[2])
		if mo < 1 || mo > 12 || d < 1 || d > 31 {
			continue
		}
		y := now.Year()
		if m[3] != "" {
			y, _ = strconv.Atoi(m[3])
		}
		t := day(y, time.Month(mo), d)
		if t.Month() != time.Month(mo) || t.Day() != d {
			continue
		}
		if m[3] == "" && t.Before(today) {
			t = day(y+1, time.Month(mo), d)
		}
		out = append(out, t)
	}

	for _, m := range monthDayPattern.FindAllStringSubmatch(lower, -1) {
		mo := monthsByPrefix[m[1][:3]]
		d, _ := strconv.Atoi(m[2])
		t := day(now.Year(), mo, d)
		if t.Month() != mo || t.Day() != d {
			continue
		}
		if t.Before(today) {
			t = day(now.Year()+1, mo, d)
		}
		out = append(out, t)
	}

	if strings.Contains(lower, "today") {
		out = append(out, today)
	}
	if strings.Contains(lower, "tomorrow") {
		out = append(out, today.AddDate(0, 0, 1))
	}
	if strings.Contains(lower, "next week") {
		out = append(out, today.AddDate(0, 0, 7))
	}
	if strings.Contains(lower, "next month") {
		out = append(out, today.AddDate(0, 1, 0))
	}

	for _, m := range inDurationPattern.FindAllStringSubmatch(lower, -1) {
		n, _ := strconv.Atoi(m[1])
		if strings.HasPrefix(m[2], "week") {
			n *= 7
		}
		out = append(out, today.AddDate(0, 0, n))
	}

	for _, m := range weekdayPattern.FindAllStringSubmatch(lower, -1) {
		target := weekdaysByName[m[2]]
		ahead := (int(target) - int(today.Weekday()) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		if m[1] != "" && ahead < 7 {
			ahead += 7
		}
		out = append(out, today.AddDate(0, 0, ahead))
	}

	return out
}

// Deadline picks the deadline from recognized candidates: the latest one,
// maximizing the completion buffer. ok is false when candidates is empty.
func Deadline(candidates []time.Time) (deadline time.Time, ok bool) {
	for _, c := range candidates {
		if !ok || c.After(deadline) {
			deadline = c
			ok = true
		}
	}
	return deadline, ok
}

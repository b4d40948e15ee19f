package event

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var numericLayouts = []string{
	"2006-01-02",
	"2006/1/2",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2/1/06",
	"2-1-06",
}

var (
	isoPrefixRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[t ]`)
	dayOnlyRe   = regexp.MustCompile(`^\d{1,2}$`)
)

// ParseDate converts value to a calendar date. Accepted forms: ISO dates,
// day-first numeric dates, "15 de julio de 2025", "15 julio", "July 15, 2025",
// "martes 15 de julio" and the bulletin form "15 MARTES", which takes month
// and year from period. Values that match none of these are rejected; the
// current date is never substituted.
func ParseDate(value string, period Period) (time.Time, error) {
	folded := CollapseSpace(Fold(value))
	if folded == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if m := isoPrefixRe.FindStringSubmatch(folded); m != nil {
		folded = m[1]
	}

	for _, layout := range numericLayouts {
		if t, err := time.Parse(layout, folded); err == nil {
			return t, nil
		}
	}

	words := Words(folded)
	words = dropWords(words, map[string]bool{"de": true, "del": true, "el": true, "the": true, "of": true})
	words = trimOrdinals(words)

	var weekday *time.Weekday
	if len(words) > 0 {
		if wd, ok := weekdayNames[words[0]]; ok {
			weekday = &wd
			words = words[1:]
		} else if wd, ok := weekdayNames[words[len(words)-1]]; ok {
			weekday = &wd
			words = words[:len(words)-1]
		}
	}

	switch len(words) {
	case 1:
		if !dayOnlyRe.MatchString(words[0]) {
			break
		}
		day, _ := strconv.Atoi(words[0])
		if weekday != nil {
			return resolveWeekday(day, *weekday, period)
		}
		if len(period.Months) == 1 {
			return buildDate(period.Months[0].Year, period.Months[0].Month, day)
		}
		return time.Time{}, fmt.Errorf("day %d without month context", day)

	case 2, 3:
		day, month, year, ok := splitTextualDate(words)
		if !ok {
			break
		}
		if year == 0 {
			y, found := period.YearFor(month)
			if !found {
				return time.Time{}, fmt.Errorf("date %q has no year and the document has no period", value)
			}
			year = y
		}
		t, err := buildDate(year, month, day)
		if err != nil {
			return time.Time{}, err
		}
		if weekday != nil && t.Weekday() != *weekday {
			return time.Time{}, fmt.Errorf("date %q: %s is not a %s", value, t.Format(DateLayout), weekday.String())
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date format %q", value)
}

// splitTextualDate accepts [day month], [day month year], [month day] and
// [month day year].
func splitTextualDate(words []string) (int, time.Month, int, bool) {
	lookup := func(w string) (time.Month, bool) {
		if m, ok := monthNames[w]; ok {
			return m, true
		}
		m, ok := monthAbbreviations[w]
		return m, ok
	}

	var dayWord, monthWord string
	if _, ok := lookup(words[1]); ok && dayOnlyRe.MatchString(words[0]) {
		dayWord, monthWord = words[0], words[1]
	} else if _, ok := lookup(words[0]); ok && dayOnlyRe.MatchString(words[1]) {
		dayWord, monthWord = words[1], words[0]
	} else {
		return 0, 0, 0, false
	}

	day, _ := strconv.Atoi(dayWord)
	month, _ := lookup(monthWord)

	year := 0
	if len(words) == 3 {
		y, err := strconv.Atoi(words[2])
		if err != nil || len(words[2]) != 4 {
			return 0, 0, 0, false
		}
		year = y
	}

	return day, month, year, true
}

// resolveWeekday picks the first month of the period in which day falls on weekday.
func resolveWeekday(day int, weekday time.Weekday, period Period) (time.Time, error) {
	if period.IsZero() {
		return time.Time{}, fmt.Errorf("day %d %s without month context", day, weekday)
	}
	for _, my := range period.Months {
		t, err := buildDate(my.Year, my.Month, day)
		if err != nil {
			continue
		}
		if t.Weekday() == weekday {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("day %d is not a %s in any month of the document", day, weekday)
}

func buildDate(year int, month time.Month, day int) (time.Time, error) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, fmt.Errorf("invalid calendar date %04d-%02d-%02d", year, month, day)
	}
	return t, nil
}

func dropWords(words []string, drop map[string]bool) []string {
	out := words[:0:0]
	for _, w := range words {
		if !drop[w] {
			out = append(out, w)
		}
	}
	return out
}

// trimOrdinals turns "15th" into "15" and "1º" into "1".
func trimOrdinals(words []string) []string {
	for i, w := range words {
		for _, suffix := range []string{"st", "nd", "rd", "th", "º", "ª", "o"} {
			if trimmed, ok := strings.CutSuffix(w, suffix); ok && dayOnlyRe.MatchString(trimmed) {
				words[i] = trimmed
				break
			}
		}
	}
	return words
}

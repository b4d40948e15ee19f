package event

import (
	"strconv"
	"time"
)

var monthNames = map[string]time.Month{
	"enero": time.January, "febrero": time.February, "marzo": time.March,
	"abril": time.April, "mayo": time.May, "junio": time.June,
	"julio": time.July, "agosto": time.August, "septiembre": time.September,
	"setiembre": time.September, "octubre": time.October, "noviembre": time.November,
	"diciembre": time.December,
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

var monthAbbreviations = map[string]time.Month{
	"ene": time.January, "jan": time.January, "feb": time.February, "mar": time.March,
	"abr": time.April, "apr": time.April, "jun": time.June, "jul": time.July,
	"ago": time.August, "aug": time.August, "sep": time.September, "sept": time.September,
	"oct": time.October, "nov": time.November, "dic": time.December, "dec": time.December,
}

var weekdayNames = map[string]time.Weekday{
	"lunes": time.Monday, "martes": time.Tuesday, "miercoles": time.Wednesday,
	"jueves": time.Thursday, "viernes": time.Friday, "sabado": time.Saturday,
	"domingo": time.Sunday,
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
	"sunday": time.Sunday,
}

// words allowed between a month name and its year: "julio de 2025",
// "julio y agosto 2025", "June and July 2025"
var periodConnectors = map[string]bool{
	"de": true, "del": true, "y": true, "e": true, "and": true,
}

type MonthYear struct {
	Year  int
	Month time.Month
}

// Period is the month context of a document, read from headings such as
// "JULIO 2025" or "JULIO Y AGOSTO 2025". Bulletins often list events as
// "15 MARTES" and rely on that heading for month and year.
type Period struct {
	Months []MonthYear
}

func (p Period) IsZero() bool {
	return len(p.Months) == 0
}

// YearFor returns the year the document associates with month.
func (p Period) YearFor(month time.Month) (int, bool) {
	for _, m := range p.Months {
		if m.Month == month {
			return m.Year, true
		}
	}
	if len(p.Months) > 0 {
		return p.Months[0].Year, true
	}
	return 0, false
}

// DetectPeriod scans text for "<month> [connectors] <year>" sequences, in
// order of appearance and without duplicates.
func DetectPeriod(text string) Period {
	var period Period
	seen := make(map[MonthYear]bool)
	var pending []time.Month

	for _, word := range Words(text) {
		if month, ok := monthNames[word]; ok {
			pending = append(pending, month)
			continue
		}
		if len(pending) > 0 && periodConnectors[word] {
			continue
		}
		if len(pending) > 0 && len(word) == 4 {
			if year, err := strconv.Atoi(word); err == nil && year >= 1900 && year <= 2100 {
				for _, month := range pending {
					my := MonthYear{Year: year, Month: month}
					if !seen[my] {
						seen[my] = true
						period.Months = append(period.Months, my)
					}
				}
			}
		}
		pending = pending[:0]
	}

	return period
}

package event

import (
	"regexp"
	"strings"
)

const FreePrice = "Free"

var (
	zeroPriceRe = regexp.MustCompile(`^(€|eur|euros?)?\s*0+([.,]0+)?\s*(€|eur|euros?)?$`)

	freeExact = map[string]bool{
		"libre":   true,
		"free":    true,
		"0":       true,
		"-":       true,
		"ninguno": true,
	}

	freePhrases = []string{
		"gratis",
		"gratuit",
		"entrada libre",
		"acceso libre",
		"sin coste",
		"sin costo",
		"free entry",
		"free admission",
		"free of charge",
	}
)

// NormalizePrice fills a blank price from fallback and reports free events
// as "Free". Other values pass through trimmed.
func NormalizePrice(price, fallback string) string {
	price = CollapseSpace(price)
	if price == "" {
		price = CollapseSpace(fallback)
	}
	if IsFree(price) {
		return FreePrice
	}
	return price
}

func IsFree(price string) bool {
	folded := CollapseSpace(Fold(price))
	if folded == "" || freeExact[folded] || zeroPriceRe.MatchString(folded) {
		return true
	}
	for _, phrase := range freePhrases {
		if strings.Contains(folded, phrase) {
			return true
		}
	}
	return false
}

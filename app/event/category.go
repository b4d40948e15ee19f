package event

import "strings"

const (
	CategoryCulture  = "Cultura"
	CategorySport    = "Deporte y Salud"
	CategoryTraining = "Formación"
	CategoryCinema   = "Cine"
	CategoryWalks    = "Paseos y Excursiones"
	CategoryLeisure  = "Ocio y Social"

	DefaultCategory = CategoryLeisure
)

// Categories lists the closed category set in display order.
var Categories = []string{
	CategoryCulture,
	CategorySport,
	CategoryTraining,
	CategoryCinema,
	CategoryWalks,
	CategoryLeisure,
}

// categoryAliases maps folded labels (Spanish and English) onto canonical categories.
var categoryAliases = map[string]string{
	"cultura":              CategoryCulture,
	"culture":              CategoryCulture,
	"cultural":             CategoryCulture,
	"deporte y salud":      CategorySport,
	"deporte":              CategorySport,
	"deportes":             CategorySport,
	"salud":                CategorySport,
	"sport":                CategorySport,
	"sports":               CategorySport,
	"sport&health":         CategorySport,
	"sport & health":       CategorySport,
	"sport and health":     CategorySport,
	"formacion":            CategoryTraining,
	"training":             CategoryTraining,
	"education":            CategoryTraining,
	"educacion":            CategoryTraining,
	"cine":                 CategoryCinema,
	"cinema":               CategoryCinema,
	"film":                 CategoryCinema,
	"paseos y excursiones": CategoryWalks,
	"paseos":               CategoryWalks,
	"excursiones":          CategoryWalks,
	"walks":                CategoryWalks,
	"walks/excursions":     CategoryWalks,
	"excursions":           CategoryWalks,
	"ocio y social":        CategoryLeisure,
	"ocio":                 CategoryLeisure,
	"social":               CategoryLeisure,
	"leisure":              CategoryLeisure,
	"leisure/social":       CategoryLeisure,
}

type categoryRule struct {
	category string
	keywords []string
}

// categoryRules is evaluated in order; the first rule with a matching keyword wins.
// Keywords are folded and match at the start of a word; a trailing space
// requires the whole word.
var categoryRules = []categoryRule{
	{CategoryCinema, []string{"cine", "pelicula", "film", "proyeccion", "cortometraje", "documental", "movie", "screening"}},
	{CategoryTraining, []string{"taller", "curso", "formacion", "seminario", "conferencia", "charla", "clase", "jornada formativa", "workshop", "course", "lecture", "masterclass", "class "}},
	{CategoryWalks, []string{"excursion", "ruta", "senderismo", "paseo", "visita guiada", "marcha", "hike", "hiking", "walk", "trip ", "guided tour"}},
	{CategorySport, []string{"deporte", "deportiv", "futbol", "baloncesto", "carrera", "yoga", "pilates", "salud", "fitness", "torneo", "gimnasia", "natacion", "maraton", "sport", "running", "health", "marathon", "tournament"}},
	{CategoryCulture, []string{"concierto", "teatro", "exposicion", "museo", "musica", "danza", "libro", "lectura", "poesia", "cuentacuentos", "opera ", "zarzuela", "concert", "theatre", "theater", "exhibition", "music", "dance", "reading"}},
	{CategoryLeisure, []string{"fiesta", "feria", "mercadillo", "verbena", "encuentro", "juegos", "party", "fair ", "market", "games"}},
}

func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// CanonicalCategory maps a free-form label onto the closed set.
func CanonicalCategory(label string) (string, bool) {
	folded := CollapseSpace(Fold(label))
	if folded == "" {
		return "", false
	}
	for _, c := range Categories {
		if Fold(c) == folded {
			return c, true
		}
	}
	c, ok := categoryAliases[folded]
	return c, ok
}

// ClassifyText returns the category suggested by keywords in text.
func ClassifyText(text string) (string, bool) {
	haystack := " " + strings.Join(Words(text), " ") + " "
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(haystack, " "+kw) {
				return rule.category, true
			}
		}
	}
	return "", false
}

// ResolveCategory never returns an empty category.
func ResolveCategory(label, title, description, fallback string) string {
	if c, ok := CanonicalCategory(label); ok {
		return c
	}
	if c, ok := ClassifyText(title + " " + description); ok {
		return c
	}
	if c, ok := CanonicalCategory(fallback); ok {
		return c
	}
	return DefaultCategory
}

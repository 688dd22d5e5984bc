package extract

import "strings"

// Pattern categories.
const (
	CategoryPainting      = "painting"
	CategoryMechanical    = "mechanical"
	CategoryElectrical    = "electrical"
	CategoryArchitectural = "architectural"
	CategoryStructural    = "structural"
	CategoryTechnicalCode = "technical_code"
)

// Categorize maps a callout code to its discipline by prefix. Precedence:
// PT or P followed by a digit or hyphen, then M, E, A, S.
func Categorize(code string) string {
	c := strings.ToUpper(code)
	switch {
	case strings.HasPrefix(c, "PT"):
		return CategoryPainting
	case len(c) > 1 && c[0] == 'P' && (c[1] == '-' || (c[1] >= '0' && c[1] <= '9')):
		return CategoryPainting
	case strings.HasPrefix(c, "M"):
		return CategoryMechanical
	case strings.HasPrefix(c, "E"):
		return CategoryElectrical
	case strings.HasPrefix(c, "A"):
		return CategoryArchitectural
	case strings.HasPrefix(c, "S"):
		return CategoryStructural
	default:
		return CategoryTechnicalCode
	}
}

package analysis

import "strings"

type ColorBucket string

const (
	ColorRed     ColorBucket = "red"
	ColorYellow  ColorBucket = "yellow"
	ColorCloudy  ColorBucket = "cloudy"
	ColorClear   ColorBucket = "clear"
	ColorUnknown ColorBucket = "unknown"
)

const riskLow = "low"

// ColorRisk is the clinical reading of one drain-effluent color.
type ColorRisk struct {
	Color            ColorBucket `json:"color"`
	RiskLevel        string      `json:"risk_level"`
	Description      string      `json:"description"`
	Recommendation   string      `json:"recommendation"`
	Severity         int         `json:"severity"`
	HasInfectionRisk bool        `json:"has_infection_risk"`
}

type colorRule struct {
	matches []string
	risk    ColorRisk
}

// colorRules is evaluated in order; the first rule with a matching term wins.
var colorRules = []colorRule{
	{
		matches: []string{"red", "hugas isda"},
		risk: ColorRisk{
			Color:          ColorRed,
			RiskLevel:      "high",
			Description:    "Blood-tinged - May indicate bleeding or infection",
			Recommendation: "Monitor closely and if persists go to the emergency department immediately",
			Severity:       4,
		},
	},
	{
		matches: []string{"yellow", "pineapple"},
		risk: ColorRisk{
			Color:          ColorYellow,
			RiskLevel:      "medium-high",
			Description:    "Abnormal color - Possible infection or other issues",
			Recommendation: "Consider getting laboratory for evaluation",
			Severity:       3,
		},
	},
	{
		matches: []string{"cloudy", "hugas bigas"},
		risk: ColorRisk{
			Color:          ColorCloudy,
			RiskLevel:      "medium-low",
			Description:    "Fibrins - Cloudy fluid may indicate fibrins",
			Recommendation: "Continue current routine",
			Severity:       2,
		},
	},
	{
		matches: []string{"clear"},
		risk: ColorRisk{
			Color:          ColorClear,
			RiskLevel:      riskLow,
			Description:    "Normal - No signs of infection",
			Recommendation: "Continue current care routine",
			Severity:       1,
		},
	},
}

var unknownColor = ColorRisk{
	Color:          ColorUnknown,
	RiskLevel:      "medium",
	Description:    "Color not recognized",
	Recommendation: "Consult healthcare provider",
	Severity:       2,
}

// ClassifyColor maps free-text drain color onto a bucket. Matching is a
// case-insensitive substring search over the trimmed text.
func ClassifyColor(color string) ColorRisk {
	text := strings.ToLower(strings.TrimSpace(color))
	if text != "" {
		for _, rule := range colorRules {
			for _, term := range rule.matches {
				if strings.Contains(text, term) {
					return withInfectionRisk(rule.risk)
				}
			}
		}
	}
	return withInfectionRisk(unknownColor)
}

// ColorTable returns the static bucket table, unknown last.
func ColorTable() []ColorRisk {
	table := make([]ColorRisk, 0, len(colorRules)+1)
	for _, rule := range colorRules {
		table = append(table, withInfectionRisk(rule.risk))
	}
	return append(table, withInfectionRisk(unknownColor))
}

// ColorBuckets lists every bucket in precedence order.
func ColorBuckets() []ColorBucket {
	return []ColorBucket{ColorRed, ColorYellow, ColorCloudy, ColorClear, ColorUnknown}
}

func withInfectionRisk(r ColorRisk) ColorRisk {
	r.HasInfectionRisk = r.RiskLevel != riskLow
	return r
}

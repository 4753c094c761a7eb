package models

import "strings"

// Indicator identifies one of the published economic series.
type Indicator string

const (
	Selic      Indicator = "selic"
	Cambio     Indicator = "cambio"
	IPCA       Indicator = "ipca"
	PIB        Indicator = "pib"
	Divida     Indicator = "divida"
	Desemprego Indicator = "desemprego"
)

// Indicators lists every supported indicator in display order.
var Indicators = []Indicator{Selic, Cambio, IPCA, PIB, Divida, Desemprego}

var indicatorLabels = map[Indicator]string{
	Selic:      "Selic",
	Cambio:     "Câmbio",
	IPCA:       "IPCA",
	PIB:        "PIB",
	Divida:     "Dívida",
	Desemprego: "Desemprego",
}

// IsValid returns true if i is a supported indicator.
func (i Indicator) IsValid() bool {
	_, ok := indicatorLabels[i]
	return ok
}

// Label returns the human readable name used in alert messages.
func (i Indicator) Label() string {
	if l, ok := indicatorLabels[i]; ok {
		return l
	}
	return string(i)
}

// NormalizeIndicator lowercases and trims raw input. The result may still be invalid.
func NormalizeIndicator(s string) Indicator {
	return Indicator(strings.ToLower(strings.TrimSpace(s)))
}

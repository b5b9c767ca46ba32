package ruleengine

import "strings"

// euCountries are the 27 EU member states.
var euCountries = []string{
	"AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR",
	"DE", "GR", "HU", "IE", "IT", "LV", "LT", "LU", "MT", "NL",
	"PL", "PT", "RO", "SK", "SI", "ES", "SE",
}

// eeaCountries are the EU plus Iceland, Liechtenstein and Norway.
var eeaCountries = append(append([]string{}, euCountries...), "IS", "LI", "NO")

// GeoEvaluator answers conditions about the visitor's country. The value may
// be a literal two-letter code, a comma-separated list of codes, or one of
// the synthetic groups EU, EEA, GDPR (= EEA) and US.
//
// Fail-closed: when the visitor's country could not be determined, every
// comparison answers false — absence of location data must never be read as
// "inside the EU".
type GeoEvaluator struct {
	eu  map[string]struct{}
	eea map[string]struct{}
}

// NewGeoEvaluator builds the evaluator with its country sets indexed.
func NewGeoEvaluator() *GeoEvaluator {
	toSet := func(codes []string) map[string]struct{} {
		s := make(map[string]struct{}, len(codes))
		for _, c := range codes {
			s[c] = struct{}{}
		}
		return s
	}
	return &GeoEvaluator{eu: toSet(euCountries), eea: toSet(eeaCountries)}
}

func (e *GeoEvaluator) Type() string { return "geo" }

func (e *GeoEvaluator) Operators() map[string]string {
	return map[string]string{
		"is":     "is",
		"is_not": "is not",
		"in":     "in list",
	}
}

func (e *GeoEvaluator) ValueKind() ValueKind { return ValueKindSelect }

func (e *GeoEvaluator) ValueOptions() map[string]string {
	return map[string]string{
		"EU":   "European Union (27 countries)",
		"EEA":  "European Economic Area (30 countries)",
		"GDPR": "GDPR countries",
		"US":   "United States",
		"GB":   "United Kingdom",
		"CA":   "Canada",
		"AU":   "Australia",
	}
}

func (e *GeoEvaluator) Evaluate(operator, value string, req *RequestContext) bool {
	country := strings.ToUpper(req.Country)
	if country == "" {
		return false
	}

	var match bool
	switch value {
	case "EU":
		_, match = e.eu[country]
	case "EEA", "GDPR":
		// GDPR territorial scope is the EEA.
		_, match = e.eea[country]
	case "US":
		match = country == "US"
	default:
		match = matchCountryList(country, value)
	}

	switch operator {
	case "is", "in":
		return match
	case "is_not":
		return !match
	default:
		return false
	}
}

// matchCountryList compares against a single code or a comma-separated list.
func matchCountryList(country, value string) bool {
	for _, code := range splitList(value) {
		if strings.ToUpper(code) == country {
			return true
		}
	}
	return false
}

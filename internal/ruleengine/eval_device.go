package ruleengine

import "regexp"

// DeviceEvaluator classifies the request's user agent into a device class
// and answers is/is_not conditions over it.
type DeviceEvaluator struct{}

// Tablet patterns are checked before generic mobile ones so an Android
// tablet is not misclassified as a phone. Go's regexp has no lookahead, so
// the "Android without Mobile" tablet case is handled separately below.
var (
	tabletRe  = regexp.MustCompile(`(?i)iPad|Tablet|PlayBook|Silk|Kindle`)
	androidRe = regexp.MustCompile(`(?i)Android`)
	mobileRe  = regexp.MustCompile(`(?i)Mobile|iPhone|iPod|webOS|BlackBerry|Opera Mini|IEMobile`)
)

func (e *DeviceEvaluator) Type() string { return "device" }

func (e *DeviceEvaluator) Operators() map[string]string {
	return map[string]string{
		"is":     "is",
		"is_not": "is not",
	}
}

func (e *DeviceEvaluator) ValueKind() ValueKind { return ValueKindSelect }

func (e *DeviceEvaluator) ValueOptions() map[string]string {
	return map[string]string{
		"desktop": "Desktop",
		"mobile":  "Mobile",
		"tablet":  "Tablet",
	}
}

func (e *DeviceEvaluator) Evaluate(operator, value string, req *RequestContext) bool {
	match := ClassifyDevice(req.UserAgent) == value

	switch operator {
	case "is":
		return match
	case "is_not":
		return !match
	default:
		return false
	}
}

// ClassifyDevice maps a User-Agent string to desktop, mobile, or tablet.
// An empty user agent classifies as desktop.
func ClassifyDevice(userAgent string) string {
	if userAgent == "" {
		return "desktop"
	}

	if tabletRe.MatchString(userAgent) {
		return "tablet"
	}

	if androidRe.MatchString(userAgent) {
		// Android phones advertise "Mobile"; Android tablets do not.
		if mobileRe.MatchString(userAgent) {
			return "mobile"
		}
		return "tablet"
	}

	if mobileRe.MatchString(userAgent) {
		return "mobile"
	}

	return "desktop"
}

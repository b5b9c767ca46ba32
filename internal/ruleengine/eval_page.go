package ruleengine

// PageEvaluator answers conditions about the resolved page classification of
// the current request (front page, single post, archive, search, ...).
type PageEvaluator struct{}

// pageTypeOptions is the closed set of page classifications the evaluator
// understands. A value outside this set never matches under "is".
var pageTypeOptions = map[string]string{
	"front_page":        "Front page",
	"home":              "Blog home",
	"single":            "Single post",
	"page":              "Page",
	"archive":           "Archive",
	"search":            "Search results",
	"404":               "Not found",
	"category":          "Category archive",
	"tag":               "Tag archive",
	"author":            "Author archive",
	"date":              "Date archive",
	"attachment":        "Attachment",
	"singular":          "Any singular content",
	"post_type_archive": "Post type archive",
}

func (e *PageEvaluator) Type() string { return "page_type" }

func (e *PageEvaluator) Operators() map[string]string {
	return map[string]string{
		"is":     "is",
		"is_not": "is not",
	}
}

func (e *PageEvaluator) ValueKind() ValueKind { return ValueKindSelect }

func (e *PageEvaluator) ValueOptions() map[string]string { return pageTypeOptions }

// Evaluate compares the request's page classification with the rule value.
// "singular" is an umbrella over single, page and attachment.
func (e *PageEvaluator) Evaluate(operator, value string, req *RequestContext) bool {
	match := false
	if _, known := pageTypeOptions[value]; known {
		match = req.PageType == value
	}
	if value == "singular" {
		switch req.PageType {
		case "single", "page", "attachment":
			match = true
		}
	}

	switch operator {
	case "is":
		return match
	case "is_not":
		return !match
	default:
		return false
	}
}

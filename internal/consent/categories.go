package consent

// Category is one consent category as configured by the host application.
// The catalog is external input: the engine reads it, never owns it.
type Category struct {
	Key      string
	Required bool
	Enabled  bool
}

// Catalog is the ordered set of categories the banner offers. Required
// categories are pinned true regardless of user action.
type Catalog struct {
	categories []Category
}

// NewCatalog builds a catalog from ordered keys and the subset that is
// required. Disabled categories are not representable here because the
// configuration layer already filters them out.
func NewCatalog(keys []string, required []string) *Catalog {
	req := make(map[string]struct{}, len(required))
	for _, k := range required {
		req[k] = struct{}{}
	}

	categories := make([]Category, 0, len(keys))
	for _, k := range keys {
		_, isRequired := req[k]
		categories = append(categories, Category{Key: k, Required: isRequired, Enabled: true})
	}
	return &Catalog{categories: categories}
}

// Keys returns the category keys in configured order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.categories))
	for _, cat := range c.categories {
		keys = append(keys, cat.Key)
	}
	return keys
}

// Required reports whether key is a configured category that cannot be
// declined. Unknown keys are not required.
func (c *Catalog) Required(key string) bool {
	for _, cat := range c.categories {
		if cat.Key == key {
			return cat.Required
		}
	}
	return false
}

// Knows reports whether key is a configured category.
func (c *Catalog) Knows(key string) bool {
	for _, cat := range c.categories {
		if cat.Key == key {
			return true
		}
	}
	return false
}

// AllGranted returns the "accept all" category map: every key true.
func (c *Catalog) AllGranted() map[string]bool {
	m := make(map[string]bool, len(c.categories))
	for _, cat := range c.categories {
		m[cat.Key] = true
	}
	return m
}

// AllDenied returns the "reject all" category map: every key false except
// the required ones, which stay true.
func (c *Catalog) AllDenied() map[string]bool {
	m := make(map[string]bool, len(c.categories))
	for _, cat := range c.categories {
		m[cat.Key] = cat.Required
	}
	return m
}

// Apply builds the category map for "save preferences": each configured key
// takes its toggle value from selections, required keys are forced true no
// matter what the toggle said, and unknown selection keys are dropped.
func (c *Catalog) Apply(selections map[string]bool) map[string]bool {
	m := make(map[string]bool, len(c.categories))
	for _, cat := range c.categories {
		if cat.Required {
			m[cat.Key] = true
			continue
		}
		m[cat.Key] = selections[cat.Key]
	}
	return m
}

package gate

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/mediciweb/consentd/internal/consent"
)

// Marker attributes carried by neutralized elements. The activator looks for
// exactly these, so anything else emitting gated markup must use them too.
const (
	attrBlocked  = "data-consent-blocked"
	attrCategory = "data-consent-category"
	attrSrc      = "data-consent-src"
)

// blockedScriptType stops browsers from executing a script element.
const blockedScriptType = "text/plain"

// DefaultPatterns maps consent categories to URL/content substrings that
// identify third-party scripts and embeds.
func DefaultPatterns() map[string][]string {
	return map[string][]string{
		"analytics": {
			"google-analytics.com",
			"googletagmanager.com",
			"analytics.google.com",
			"gtag/js",
			"clarity.ms",
			"hotjar.com",
			"mouseflow.com",
		},
		"marketing": {
			"connect.facebook.net",
			"facebook.com/plugins",
			"fbevents.js",
			"doubleclick.net",
			"googlesyndication.com",
			"googleadservices.com",
			"platform.twitter.com",
			"linkedin.com/embed",
			"linkedin.com/px",
			"ads.linkedin.com",
			"tiktok.com",
			"snap.licdn.com",
		},
		"preferences": {
			"youtube.com",
			"youtube-nocookie.com",
			"player.vimeo.com",
			"soundcloud.com",
			"spotify.com/embed",
			"google.com/maps",
			"maps.google.com",
			"intercom.io",
			"crisp.chat",
			"drift.com",
		},
	}
}

// Neutralizer rewrites an HTML document so that scripts and iframes matching
// its patterns cannot load until consent activates them. Resources in a
// required category are never touched.
type Neutralizer struct {
	patterns map[string][]string
	catalog  *consent.Catalog
}

func NewNeutralizer(patterns map[string][]string, catalog *consent.Catalog) *Neutralizer {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	return &Neutralizer{patterns: patterns, catalog: catalog}
}

// Neutralize parses the document from r, rewrites matching elements and
// renders the result to w.
func (n *Neutralizer) Neutralize(r io.Reader, w io.Writer) error {
	doc, err := html.Parse(r)
	if err != nil {
		return err
	}

	walk(doc, func(node *html.Node) {
		switch node.DataAtom {
		case atom.Script:
			n.neutralizeScript(node)
		case atom.Iframe:
			n.neutralizeIframe(node)
		}
	})

	return html.Render(w, doc)
}

func (n *Neutralizer) neutralizeScript(node *html.Node) {
	if getAttr(node, attrBlocked) != "" {
		return
	}

	category := n.categoryFor(getAttr(node, "src"))
	if category == "" {
		category = n.categoryFor(textContent(node))
	}
	if category == "" || n.required(category) {
		return
	}

	// type=text/plain keeps the element inert; the original URL moves
	// aside so the browser never fetches it.
	setAttr(node, "type", blockedScriptType)
	if src := getAttr(node, "src"); src != "" {
		setAttr(node, attrSrc, src)
		removeAttr(node, "src")
	}
	setAttr(node, attrCategory, category)
	setAttr(node, attrBlocked, "true")
}

func (n *Neutralizer) neutralizeIframe(node *html.Node) {
	if getAttr(node, attrBlocked) != "" {
		return
	}

	src := getAttr(node, "src")
	category := n.categoryFor(src)
	if category == "" || n.required(category) {
		return
	}

	setAttr(node, attrSrc, src)
	setAttr(node, "src", "about:blank")
	setAttr(node, attrCategory, category)
	setAttr(node, attrBlocked, "true")
}

// categoryFor returns the first category whose patterns match s, or "".
func (n *Neutralizer) categoryFor(s string) string {
	if s == "" {
		return ""
	}
	for category, patterns := range n.patterns {
		for _, p := range patterns {
			if strings.Contains(s, p) {
				return category
			}
		}
	}
	return ""
}

func (n *Neutralizer) required(category string) bool {
	return n.catalog != nil && n.catalog.Required(category)
}

// DocumentSet is the ResourceSet over a parsed HTML document: descriptors
// are lifted from the marker attributes, and promoting one rewrites its node
// back to an executable form.
type DocumentSet struct {
	doc   *html.Node
	items []*Resource
	nodes map[*Resource]*html.Node
}

// ParseDocument reads a neutralized document and collects its gated
// resources.
func ParseDocument(r io.Reader) (*DocumentSet, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	set := &DocumentSet{
		doc:   doc,
		nodes: make(map[*Resource]*html.Node),
	}

	walk(doc, func(node *html.Node) {
		if getAttr(node, attrBlocked) != "true" {
			return
		}

		var kind Kind
		switch node.DataAtom {
		case atom.Script:
			kind = KindScript
		case atom.Iframe:
			kind = KindIframe
		default:
			return
		}

		res := &Resource{
			Kind:     kind,
			Category: getAttr(node, attrCategory),
			Source:   getAttr(node, attrSrc),
		}
		if kind == KindScript && res.Source == "" {
			res.Inline = textContent(node)
		}

		set.items = append(set.items, res)
		set.nodes[res] = node
	})

	return set, nil
}

func (s *DocumentSet) Blocked() []*Resource {
	var blocked []*Resource
	for _, r := range s.items {
		if !r.Active() {
			blocked = append(blocked, r)
		}
	}
	return blocked
}

// Promote activates the resource and restores its node: scripts get their
// type and src back, iframes get their real src back, and the markers are
// dropped so a second pass cannot touch it again.
func (s *DocumentSet) Promote(r *Resource) bool {
	if !r.Promote() {
		return false
	}

	node, ok := s.nodes[r]
	if !ok {
		return true
	}

	switch r.Kind {
	case KindScript:
		removeAttr(node, "type")
		if r.Source != "" {
			setAttr(node, "src", r.Source)
		}
	case KindIframe:
		setAttr(node, "src", r.Source)
	}
	removeAttr(node, attrSrc)
	removeAttr(node, attrCategory)
	removeAttr(node, attrBlocked)

	return true
}

// Render writes the document in its current state.
func (s *DocumentSet) Render(w io.Writer) error {
	return html.Render(w, s.doc)
}

// RenderString is Render into a string, for tests and templating.
func (s *DocumentSet) RenderString() (string, error) {
	var buf bytes.Buffer
	if err := s.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func walk(node *html.Node, fn func(*html.Node)) {
	fn(node)
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		walk(child, fn)
	}
}

func getAttr(node *html.Node, key string) string {
	for _, a := range node.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(node *html.Node, key, val string) {
	for i, a := range node.Attr {
		if a.Key == key {
			node.Attr[i].Val = val
			return
		}
	}
	node.Attr = append(node.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(node *html.Node, key string) {
	for i, a := range node.Attr {
		if a.Key == key {
			node.Attr = append(node.Attr[:i], node.Attr[i+1:]...)
			return
		}
	}
}

func textContent(node *html.Node) string {
	var sb strings.Builder
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			sb.WriteString(child.Data)
		}
	}
	return sb.String()
}

var _ ResourceSet = (*DocumentSet)(nil)

package xref

import "strings"

// indexable is the set of element names worth indexing; anything else is
// traversed but skipped.
var indexable = map[string]bool{
	"example": true, "solution": true, "commentary": true, "note": true,
	"figure": true, "subfigure": true, "table": true, "exercise": true,
}

// ownedKinds inherit the nearest enclosing exercise/figure's context
// pointer rather than clearing it.
var ownedKinds = map[string]bool{
	"problem": true, "solution": true, "commentary": true, "subfigure": true,
}

// captioned elements take their description from a child <caption>.
var captioned = map[string]bool{"figure": true, "subfigure": true, "table": true}

// lineContext elements are where "first line-context text" search stops.
var lineContext = map[string]bool{
	"para": true, "title": true, "item": true, "caption": true,
	"emphasis": true, "sub": true, "sup": true, "link": true,
}

const maxDescriptionLen = 240

// elementType selects the indexed type for a node, applying the
// substitutions. ok is false for non-indexable elements.
func elementType(n *Node) (typ string, ok bool) {
	if !indexable[n.Name] {
		return "", false
	}
	switch n.Name {
	case "subfigure":
		return "figure", true
	case "note":
		if t, has := n.Attrs["type"]; has && t != "" {
			return t, true
		}
		return "note", true
	default:
		return n.Name, true
	}
}

// description computes the indexed description for n, following the three
// cases: captioned elements use their caption, exercise uses its problem,
// everything else uses the first line-context text in its subtree.
func description(n *Node) string {
	switch {
	case captioned[n.Name]:
		if cap := n.child("caption"); cap != nil {
			return collapse(cap.text())
		}
		return ""
	case n.Name == "exercise":
		if prob := n.child("problem"); prob != nil {
			return collapse(prob.text())
		}
		return ""
	default:
		if t, found := firstLineContextText(n); found {
			return collapse(t)
		}
		return ""
	}
}

// firstLineContextText searches n's descendants (not n itself) in document
// order for the first element named in lineContext, returning its full text.
func firstLineContextText(n *Node) (string, bool) {
	for _, c := range n.Children {
		if lineContext[c.Name] {
			return c.text(), true
		}
		if t, ok := firstLineContextText(c); ok {
			return t, ok
		}
	}
	return "", false
}

// collapse runs of whitespace to single spaces and truncates to
// maxDescriptionLen runes.
func collapse(s string) string {
	fields := strings.Fields(s)
	joined := strings.Join(fields, " ")
	r := []rune(joined)
	if len(r) > maxDescriptionLen {
		r = r[:maxDescriptionLen]
	}
	return string(r)
}

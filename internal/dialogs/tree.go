package dialogs

import (
	"strings"

	"github.com/tidwall/gjson"
)

// contactTree is the nested department -> area -> ... -> emails mapping the
// contacts dialog walks. Object keys keep their document order.
type contactTree struct {
	root   gjson.Result
	marker string
}

func parseContactTree(raw []byte, marker string) (contactTree, bool) {
	if !gjson.ValidBytes(raw) {
		return contactTree{}, false
	}
	return contactTree{root: gjson.ParseBytes(raw), marker: marker}, true
}

// node follows path from the root. It reports false when a key is missing.
func (t contactTree) node(path []string) (gjson.Result, bool) {
	cur := t.root
	for _, key := range path {
		if !cur.IsObject() {
			return gjson.Result{}, false
		}
		var next gjson.Result
		found := false
		cur.ForEach(func(k, v gjson.Result) bool {
			if k.String() == key {
				next, found = v, true
				return false
			}
			return true
		})
		if !found {
			return gjson.Result{}, false
		}
		cur = next
	}
	return cur, true
}

// keys lists the children of an object node in document order.
func keys(n gjson.Result) []string {
	var out []string
	if !n.IsObject() {
		return out
	}
	n.ForEach(func(k, _ gjson.Result) bool {
		out = append(out, k.String())
		return true
	})
	return out
}

// strings of a node: the keys of an object, the string elements of an array,
// or the value of a string.
func nodeStrings(n gjson.Result) []string {
	switch {
	case n.IsObject():
		var out []string
		n.ForEach(func(k, v gjson.Result) bool {
			out = append(out, k.String())
			if v.Type == gjson.String {
				out = append(out, v.String())
			}
			return true
		})
		return out
	case n.IsArray():
		var out []string
		for _, v := range n.Array() {
			if v.Type == gjson.String {
				out = append(out, v.String())
			}
		}
		return out
	case n.Type == gjson.String:
		return []string{n.String()}
	}
	return nil
}

// isLeaf reports whether the node lists people: an email-shaped string
// appears among its keys or values.
//
// The check is a heuristic over the marker domain. A branch whose label
// happens to contain the marker would be taken for a leaf.
func (t contactTree) isLeaf(n gjson.Result) bool {
	return strings.Contains(strings.Join(nodeStrings(n), "\t"), t.marker)
}

// emails returns the email-shaped strings of a leaf, in order, without
// duplicates.
func (t contactTree) emails(n gjson.Result) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range nodeStrings(n) {
		s = strings.TrimSpace(s)
		if strings.Contains(s, t.marker) && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

package runner

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/wiki-citation-archive/internal/citation"
	"github.com/JakeFAU/wiki-citation-archive/internal/store"
)

// Resume key names accepted by KeyByName.
const (
	KeyLink  = "link"
	KeyTuple = "tuple"
)

// LinkKey identifies a work item by its citation link alone. A link cited by
// several articles is resolved once, under its first-seen article.
func LinkKey(item citation.WorkItem) string {
	return item.Link
}

// TupleKey identifies a work item by link, category and article, so every
// citing article gets its own row.
func TupleKey(item citation.WorkItem) string {
	return item.Link + "\x1f" + item.Category + "\x1f" + item.ArticleName
}

// KeyByName resolves a configured resume key.
func KeyByName(name string) (store.KeyFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", KeyLink:
		return LinkKey, nil
	case KeyTuple:
		return TupleKey, nil
	default:
		return nil, fmt.Errorf("unknown resume key %q (want %q or %q)", name, KeyLink, KeyTuple)
	}
}

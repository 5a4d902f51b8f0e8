package domain

import "strings"

type SelectorKind int

const (
	SelectList SelectorKind = iota
	SelectAll
	SelectPrefix
)

// Selector is a parsed experiment or model selector: every entry, an explicit
// list of IDs or names, or every entry whose name starts with a prefix.
type Selector struct {
	Kind   SelectorKind
	Names  []string
	Prefix string
}

func AllSelector() Selector {
	return Selector{Kind: SelectAll}
}

func PrefixSelector(prefix string) Selector {
	return Selector{Kind: SelectPrefix, Prefix: prefix}
}

// ListSelector wraps already resolved names. Resolving it returns the names
// unchanged.
func ListSelector(names ...string) Selector {
	return Selector{Kind: SelectList, Names: names}
}

// ParseSelector parses "all", "prefix*" or a comma separated list. A lone "*"
// is the empty prefix and therefore matches everything.
func ParseSelector(s string) Selector {
	s = strings.TrimSpace(s)
	switch {
	case strings.EqualFold(s, "all"):
		return AllSelector()
	case strings.HasSuffix(s, "*"):
		return PrefixSelector(strings.TrimSuffix(s, "*"))
	}

	var names []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			names = append(names, tok)
		}
	}
	return ListSelector(names...)
}

func (s Selector) String() string {
	switch s.Kind {
	case SelectAll:
		return "all"
	case SelectPrefix:
		return s.Prefix + "*"
	default:
		return strings.Join(s.Names, ",")
	}
}

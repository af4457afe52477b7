// Package taxonomy holds the canonical line-item keys per statement type and
// the alias tables that resolve raw labels onto them.
package taxonomy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/statements-tracker/constants"
)

// Entry is one canonical line item.
type Entry struct {
	Key      string   `yaml:"key" json:"key"`
	Label    string   `yaml:"label,omitempty" json:"label,omitempty"`
	Required bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Aliases  []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Taxonomy is immutable once built and safe for concurrent use.
type Taxonomy struct {
	entries map[constants.StatementType][]Entry
	byKey   map[constants.StatementType]map[string]Entry
	aliases map[constants.StatementType]map[string]string
}

// New builds a taxonomy from per-type tables. Aliases must be unambiguous within a type.
func New(tables map[constants.StatementType][]Entry) (*Taxonomy, error) {
	t := &Taxonomy{
		entries: make(map[constants.StatementType][]Entry, len(tables)),
		byKey:   make(map[constants.StatementType]map[string]Entry, len(tables)),
		aliases: make(map[constants.StatementType]map[string]string, len(tables)),
	}
	for st, entries := range tables {
		if st == constants.Unknown {
			return nil, fmt.Errorf("taxonomy: no table allowed for %s", st)
		}
		byKey := make(map[string]Entry, len(entries))
		aliases := make(map[string]string)
		for _, e := range entries {
			if e.Key == "" {
				return nil, fmt.Errorf("taxonomy: %s: empty key", st)
			}
			if _, dup := byKey[e.Key]; dup {
				return nil, fmt.Errorf("taxonomy: %s: duplicate key %q", st, e.Key)
			}
			byKey[e.Key] = e
			for _, a := range e.Aliases {
				n := NormalizeLabel(a)
				if n == "" {
					continue
				}
				if prev, ok := aliases[n]; ok && prev != e.Key {
					return nil, fmt.Errorf("taxonomy: %s: alias %q maps to both %q and %q", st, a, prev, e.Key)
				}
				aliases[n] = e.Key
			}
		}
		// The key itself, read as words, resolves unless an explicit alias claims it.
		for _, e := range entries {
			n := NormalizeLabel(strings.ReplaceAll(e.Key, "_", " "))
			if _, ok := aliases[n]; !ok {
				aliases[n] = e.Key
			}
		}
		t.entries[st] = append([]Entry(nil), entries...)
		t.byKey[st] = byKey
		t.aliases[st] = aliases
	}
	return t, nil
}

// Resolve maps a raw label onto a canonical key for st.
func (t *Taxonomy) Resolve(st constants.StatementType, label string) (string, bool) {
	key, ok := t.aliases[st][NormalizeLabel(label)]
	return key, ok
}

// Valid reports whether key belongs to st's taxonomy.
func (t *Taxonomy) Valid(st constants.StatementType, key string) bool {
	_, ok := t.byKey[st][key]
	return ok
}

// Entry returns the definition of key under st.
func (t *Taxonomy) Entry(st constants.StatementType, key string) (Entry, bool) {
	e, ok := t.byKey[st][key]
	return e, ok
}

// Required lists the keys flagged as required for st, in table order.
func (t *Taxonomy) Required(st constants.StatementType) []string {
	var out []string
	for _, e := range t.entries[st] {
		if e.Required {
			out = append(out, e.Key)
		}
	}
	return out
}

// Keys lists every key of st in table order.
func (t *Taxonomy) Keys(st constants.StatementType) []string {
	out := make([]string, 0, len(t.entries[st]))
	for _, e := range t.entries[st] {
		out = append(out, e.Key)
	}
	return out
}

// Types lists the statement types that have a table.
func (t *Taxonomy) Types() []constants.StatementType {
	out := make([]constants.StatementType, 0, len(t.entries))
	for st := range t.entries {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	footnoteTail = regexp.MustCompile(`(\s*(\(\d{1,2}\)|\[\d{1,2}\]|\*+|†+))+$`)
	enumerator   = regexp.MustCompile(`^(\(?([0-9]{1,2}|[ivx]{1,4}|[a-h])[.)]\s+)`)
	punct        = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

// NormalizeLabel lowercases a label, drops footnote markers, enumerators and
// trailing colons, folds punctuation to spaces and collapses whitespace.
func NormalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = footnoteTail.ReplaceAllString(s, "")
	s = strings.TrimRight(s, ": ")
	s = enumerator.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.NewReplacer("'", "", "’", "").Replace(s)
	s = punct.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

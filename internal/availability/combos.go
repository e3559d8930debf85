package availability

import (
	"sort"
	"strings"

	"github.com/tably/tably-go/internal/domain"
)

// ComboSuggester ranks groups of free tables whose combined capacity can seat
// a party. It is a pure function over an availability snapshot; the ranking
// rule is pluggable.
type ComboSuggester interface {
	Suggest(tables []domain.DiningTable, partySize int) [][]string
}

// FewestTablesSuggester prefers combos with fewer tables, then the least
// wasted capacity, then lexical table order. Only minimal combos are offered:
// dropping any member must leave the party unseated.
type FewestTablesSuggester struct {
	MaxTables      int
	MaxSuggestions int
}

func NewFewestTablesSuggester() *FewestTablesSuggester {
	return &FewestTablesSuggester{
		MaxTables:      3,
		MaxSuggestions: 5,
	}
}

type combo struct {
	ids      []string
	capacity int
}

func (s *FewestTablesSuggester) Suggest(tables []domain.DiningTable, partySize int) [][]string {
	if partySize < 1 || len(tables) == 0 {
		return nil
	}

	maxTables := s.MaxTables
	if maxTables < 1 {
		maxTables = 3
	}
	maxSuggestions := s.MaxSuggestions
	if maxSuggestions < 1 {
		maxSuggestions = 5
	}

	sorted := make([]domain.DiningTable, len(tables))
	copy(sorted, tables)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var combos []combo
	var pick func(start int, cur []domain.DiningTable, capacity int)
	pick = func(start int, cur []domain.DiningTable, capacity int) {
		if capacity >= partySize {
			if minimal(cur, capacity, partySize) {
				ids := make([]string, len(cur))
				for i, t := range cur {
					ids[i] = t.ID
				}
				combos = append(combos, combo{ids: ids, capacity: capacity})
			}
			// any superset would not be minimal
			return
		}
		if len(cur) == maxTables {
			return
		}
		for i := start; i < len(sorted); i++ {
			pick(i+1, append(cur, sorted[i]), capacity+sorted[i].Capacity)
		}
	}
	pick(0, nil, 0)

	sort.Slice(combos, func(i, j int) bool {
		a, b := combos[i], combos[j]
		if len(a.ids) != len(b.ids) {
			return len(a.ids) < len(b.ids)
		}
		if a.capacity != b.capacity {
			return a.capacity < b.capacity
		}
		return strings.Join(a.ids, ",") < strings.Join(b.ids, ",")
	})

	if len(combos) > maxSuggestions {
		combos = combos[:maxSuggestions]
	}

	out := make([][]string, len(combos))
	for i, c := range combos {
		out[i] = c.ids
	}

	return out
}

// minimal reports whether every member is needed to seat the party.
func minimal(cur []domain.DiningTable, capacity, partySize int) bool {
	for _, t := range cur {
		if capacity-t.Capacity >= partySize {
			return false
		}
	}
	return true
}

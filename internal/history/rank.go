package history

import (
	"sort"
	"strings"
)

// Field weights and token importance for the fuzzy score.
const (
	domainWeight = 5
	urlWeight    = 3
	titleWeight  = 1

	firstTokenImportance = 100
	restTokenImportance  = 35

	orderedTokensBonus = 150
	maxVisitCountBoost = 50
)

// searchParamMarkers flag URLs that point at search-result pages; matches
// on those are worth less than matches on content pages.
var searchParamMarkers = []string{
	"?q=", "&q=",
	"?search=", "&search=",
	"?query=", "&query=",
}

// Rank filters and orders items against a free-text query. Every
// whitespace-separated token must occur in the item's title, URL or domain
// for the item to qualify. Qualifying items are scored per token on each
// field taking the best field, with bonuses for prefix and early matches,
// an in-order URL bonus, a penalty for search-result URLs and small
// recency/frequency tiebreakers. An empty query returns items unchanged.
func Rank(items []*Item, query string) []*Item {
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
	if len(tokens) == 0 {
		return items
	}

	type scored struct {
		item  *Item
		score int
	}

	qualified := make([]scored, 0, len(items))
	for _, it := range items {
		total, ok := scoreItem(it, tokens)
		if !ok {
			continue
		}
		qualified = append(qualified, scored{item: it, score: total})
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		if qualified[i].score != qualified[j].score {
			return qualified[i].score > qualified[j].score
		}
		if qualified[i].item.LastVisit != qualified[j].item.LastVisit {
			return qualified[i].item.LastVisit > qualified[j].item.LastVisit
		}

		return qualified[i].item.VisitCount > qualified[j].item.VisitCount
	})

	out := make([]*Item, len(qualified))
	for i, s := range qualified {
		out[i] = s.item
	}

	return out
}

const millisPerDay = int64(24 * 60 * 60 * 1000)

// scoreItem computes the fuzzy score for one item. The second return value
// is false when the item does not qualify (some token matches no field).
func scoreItem(it *Item, tokens []string) (int, bool) {
	title := strings.ToLower(it.Title)
	rawURL := strings.ToLower(it.URL)
	domain := strings.ToLower(it.Domain)

	if !allTokensMatch(tokens, title, rawURL, domain) {
		return 0, false
	}

	total := 0
	for i, t := range tokens {
		importance := restTokenImportance
		if i == 0 {
			importance = firstTokenImportance
		}

		ds := fieldScore(domain, t, importance*domainWeight)
		us := fieldScore(rawURL, t, importance*urlWeight)
		ts := fieldScore(title, t, importance*titleWeight)
		total += max(ds, max(us, ts))
	}

	if len(tokens) >= 2 && tokensInOrder(tokens, rawURL) {
		total += orderedTokensBonus
	}

	if hasSearchParams(rawURL) {
		total = total * 7 / 10
	}

	total += min(it.VisitCount, maxVisitCountBoost)
	total += int((it.LastVisit / millisPerDay) % 7)

	return total, true
}

// fieldScore scores one token against one field. Zero when the field does
// not contain the token; otherwise the base weight plus a 50% prefix boost
// and a capped bonus for matches close to the start of the field.
func fieldScore(field, token string, base int) int {
	idx := strings.Index(field, token)
	if idx < 0 {
		return 0
	}

	s := base
	if strings.HasPrefix(field, token) {
		s += base / 2
	}

	s += max(base/4, 1) * (10 - min(idx/10, 10))

	return s
}

func allTokensMatch(tokens []string, title, rawURL, domain string) bool {
	for _, t := range tokens {
		if !strings.Contains(title, t) &&
			!strings.Contains(rawURL, t) &&
			!strings.Contains(domain, t) {
			return false
		}
	}

	return true
}

// tokensInOrder reports whether every token occurs in the URL with first
// occurrences in the same left-to-right order as typed.
func tokensInOrder(tokens []string, rawURL string) bool {
	lastIdx := -1
	for _, t := range tokens {
		i := strings.Index(rawURL, t)
		if i < 0 || i < lastIdx {
			return false
		}
		lastIdx = i
	}

	return true
}

func hasSearchParams(rawURL string) bool {
	for _, m := range searchParamMarkers {
		if strings.Contains(rawURL, m) {
			return true
		}
	}

	return false
}

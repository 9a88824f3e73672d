package trade

import "strings"

// Intent is what the player's utterance resolved to: an item, an
// optional explicit quantity, and the sell-all/one-by-one/ambiguous
// flags the engine needs to decide whether to ask a follow-up question.
type Intent struct {
	ItemID    string
	Qty       *int
	MaxQty    int
	SellAll   bool
	OneByOne  bool
	Ambiguous bool
}

// MatchItemByQuery finds the catalog item whose id or name best matches
// query: an exact substring match wins outright, otherwise the item with
// the highest trigram similarity above a 0.38 floor is returned.
func MatchItemByQuery(query string, itemDefs map[string]ItemDef) (ItemDef, bool) {
	q := normalizeMatchText(query)
	if q == "" {
		return ItemDef{}, false
	}
	var best ItemDef
	bestScore := 0.0
	found := false
	for id, def := range itemDefs {
		name := normalizeMatchText(def.Name)
		nid := normalizeMatchText(id)
		score := 0.0
		if strings.Contains(name, q) || strings.Contains(nid, q) {
			score = 1.0
		} else {
			score = maxFloat(trigramSimilarity(q, name), trigramSimilarity(q, nid))
		}
		if score > bestScore {
			bestScore = score
			best = def
			found = true
		}
	}
	if !found || bestScore < 0.38 {
		return ItemDef{}, false
	}
	return best, true
}

func normalizeMatchText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// trigramSimilarity is a dependency-free approximation of difflib's
// SequenceMatcher ratio: 2*shared-trigrams / (trigrams_a + trigrams_b).
func trigramSimilarity(a, b string) float64 {
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		if a == b {
			return 1.0
		}
		return 0.0
	}
	shared := 0
	counts := make(map[string]int, len(tb))
	for _, t := range tb {
		counts[t]++
	}
	for _, t := range ta {
		if counts[t] > 0 {
			counts[t]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(ta)+len(tb))
}

func trigrams(s string) []string {
	if len(s) < 3 {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	out := make([]string, 0, len(s)-2)
	for i := 0; i+3 <= len(s); i++ {
		out = append(out, s[i:i+3])
	}
	return out
}

package memoryservice

import "strings"

type keywordRule struct {
	tag      string
	keywords []string
}

// keywordRules mirrors the per-message keyword-to-tag table: every short
// turn and system event gets these tags merged in alongside its
// role/kind tag, so later retrieval's lexical overlap has something to
// match against even before compaction runs.
var keywordRules = []keywordRule{
	{"trade", []string{"buy", "sell", "price", "gold", "trade", "merchant"}},
	{"quest", []string{"quest", "mission", "objective", "contract"}},
	{"combat", []string{"combat", "attack", "monster", "dungeon", "defeat", "victory"}},
	{"training", []string{"train", "skill", "spell", "level"}},
	{"travel", []string{"travel", "route", "journey", "town"}},
	{"promise", []string{"promise", "swear", "i will", "i shall"}},
	{"debt", []string{"debt", "owe", "repay", "loan"}},
	{"relationship", []string{"trust", "betray", "love", "hate", "respect"}},
}

func tagsFromKeywordText(text string) []string {
	lower := strings.ToLower(text)
	var tags []string
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				tags = append(tags, rule.tag)
				break
			}
		}
	}
	return tags
}

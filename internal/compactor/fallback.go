package compactor

import (
	"fmt"
	"regexp"
	"strings"

	"loreforge/internal/memmodel"
	"loreforge/internal/normalize"
)

type tagRule struct {
	tag      string
	keywords []string
}

// keywordTagRules is ordered so fallbackExtract's tag list is deterministic
// (DedupeTags preserves first-occurrence order over this rule order, not
// map iteration order).
var keywordTagRules = []tagRule{
	{"trade", []string{"trade", "buy", "sell", "gold", "price", "marchand"}},
	{"quest", []string{"quest", "mission", "objective"}},
	{"combat", []string{"combat", "fight", "attack", "battle", "sword"}},
	{"training", []string{"train", "practice", "skill", "lesson"}},
	{"travel", []string{"travel", "journey", "road", "route"}},
	{"promise", []string{"promise", "swear", "vow", "oath"}},
	{"debt", []string{"debt", "owe", "repay", "loan"}},
	{"relationship", []string{"friend", "love", "trust", "betray", "relationship"}},
}

func tagsFromKeywords(text string) []string {
	lower := strings.ToLower(text)
	var tags []string
	for _, rule := range keywordTagRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				tags = append(tags, rule.tag)
				break
			}
		}
	}
	return tags
}

var positiveWords = []string{"thank", "grateful", "happy", "friend", "love", "trust", "good", "great", "kind"}
var negativeWords = []string{"hate", "angry", "betray", "liar", "threat", "bad", "cruel", "enemy"}

func countWords(text string, words []string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, w := range words {
		count += strings.Count(lower, w)
	}
	return count
}

var (
	promiseRe = regexp.MustCompile(`(?i)\b(i promise|i swear|i vow|i will)\b`)
	debtRe    = regexp.MustCompile(`(?i)\b(owe|owes|owed|debt|repay)\b`)
	eventRe   = regexp.MustCompile(`(?i)\b(attack|battle|collapse[ds]?|died|destroyed|won|lost|ambush)\b`)
)

func classifyLine(t memmodel.ShortTurn, patch *Patch) {
	isPromise := promiseRe.MatchString(t.Text)
	isDebt := debtRe.MatchString(t.Text)
	if isPromise {
		patch.Promises = append(patch.Promises, PatchPromise{
			Text: t.Text, Tags: []string{"promise"}, Importance: 0.5, Status: memmodel.PromiseOpen,
		})
	}
	if isDebt {
		patch.Debts = append(patch.Debts, PatchDebt{
			Text: t.Text, Tags: []string{"debt"}, Importance: 0.5, Status: memmodel.DebtOpen,
		})
	}
	switch {
	case isPromise || isDebt:
	case eventRe.MatchString(t.Text):
		patch.Events = append(patch.Events, PatchEvent{
			Text: t.Text, Tags: []string{"event"}, Importance: 0.5, Impact: memmodel.ImpactMed,
		})
	case t.Role != memmodel.RolePlayer:
		patch.Facts = append(patch.Facts, PatchFact{
			Text: t.Text, Importance: 0.3, Confidence: 0.6,
		})
	}
}

// fallbackExtract is the deterministic, rule-based compaction pipeline used
// whenever no AI planner is registered, or the planner fails.
func fallbackExtract(turns []memmodel.ShortTurn) *Patch {
	var lines []string
	var rawTags []string
	var positive, negative int
	patch := &Patch{}

	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("[%s] %s", t.Role, t.Text))
		rawTags = append(rawTags, tagsFromKeywords(t.Text)...)
		if t.Role == memmodel.RolePlayer {
			positive += countWords(t.Text, positiveWords)
			negative += countWords(t.Text, negativeWords)
		}
		classifyLine(t, patch)
	}

	patch.ChunkSummary = normalize.CleanText(strings.Join(lines, " "), 1000)

	tags := normalize.DedupeTags(rawTags, 8)
	if len(tags) == 0 {
		tags = []string{"general"}
	}
	patch.ChunkTags = tags

	hasTag := func(name string) bool {
		for _, tg := range tags {
			if tg == name {
				return true
			}
		}
		return false
	}

	importance := 0.35
	if hasTag("promise") || hasTag("debt") || hasTag("quest") {
		importance += 0.22
	}
	if hasTag("combat") || hasTag("relationship") {
		importance += 0.12
	}
	if len(turns) >= 24 {
		importance += 0.10
	}
	patch.ChunkImportance = clamp(importance, 0.15, 1.0)

	patch.AffinityDelta = clamp(float64(positive-negative), -5, 5)
	patch.Summary = patch.ChunkSummary
	return patch
}

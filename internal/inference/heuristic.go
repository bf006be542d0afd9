package inference

import (
	"sort"
	"strings"

	"momo-intent-backend/internal/labels"
)

// keywordRules map phrases to the default catalog's actions. Rules are tried
// in order; the first whose action is registered wins.
var keywordRules = []struct {
	action string
	all    []string
	any    []string
}{
	{action: "Apply for loan", all: []string{"loan"}, any: []string{"apply", "borrow", "get a loan", "request"}},
	{action: "Check loan", all: []string{"loan"}, any: []string{"owe", "status", "balance", "check", "repay"}},
	{action: "Apply for loan", any: []string{"borrow"}},
	{action: "Check balance", any: []string{"balance", "how much money"}},
	{action: "Pay bill", any: []string{"bill", "electricity", "water", "internet", " rent"}},
	{action: "Transfer money", all: []string{"to"}, any: []string{"savings", "checking", "investment"}},
	{action: "Send money", any: []string{"send", "transfer", "pay "}},
}

// DetectAction guesses a registered action from free text. It first looks
// for a registered action name verbatim, preferring the longest match, then
// falls back to keyword rules. It returns false when nothing matches.
func DetectAction(text string, reg *labels.Registry) (string, bool) {
	m := strings.ToLower(strings.TrimSpace(text))
	if m == "" {
		return "", false
	}

	actions := reg.Actions()
	sort.SliceStable(actions, func(i, j int) bool { return len(actions[i]) > len(actions[j]) })
	for _, a := range actions {
		if strings.Contains(m, strings.ToLower(a)) {
			return a, true
		}
	}

	for _, r := range keywordRules {
		if !reg.Has(r.action) {
			continue
		}
		if containsAll(m, r.all) && containsAny(m, r.any) {
			return r.action, true
		}
	}
	return "", false
}

// resolveAction maps a model-reported intent onto the registry, ignoring
// case and surrounding space.
func resolveAction(intent string, reg *labels.Registry) (string, bool) {
	intent = strings.TrimSpace(intent)
	if reg.Has(intent) {
		return intent, true
	}
	for _, a := range reg.Actions() {
		if strings.EqualFold(a, intent) {
			return a, true
		}
	}
	return "", false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func containsAll(s string, needles []string) bool {
	for _, n := range needles {
		if !strings.Contains(s, n) {
			return false
		}
	}
	return true
}

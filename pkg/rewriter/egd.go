package rewriter

import (
	"fmt"

	"github.com/pgview/pgview/pkg/ir"
)

// EGDSuggestion is one candidate equality-generating dependency: two
// predicates that, on current evidence, look like they identify the same
// logical entity. This is informational only — nothing in pkg/assembler
// or any backend enforces it; it exists so `egds` (spec.md §6) has
// something to print.
type EGDSuggestion struct {
	PredA, PredB string
	Reason       string
}

// SuggestEGDs looks for pairs of view predicates whose rules share an
// identical body (modulo head predicate), a cheap syntactic proxy for
// "these two predicates are always populated together and might denote
// the same entities". It is advisory: a view author decides whether to
// act on it, nothing downstream depends on the answer.
func SuggestEGDs(program []ir.Rule) []EGDSuggestion {
	bodyKeyToPreds := make(map[string][]string)
	for _, r := range program {
		key := bodyKey(r.Body)
		preds := bodyKeyToPreds[key]
		found := false
		for _, p := range preds {
			if p == r.Head.Pred {
				found = true
				break
			}
		}
		if !found {
			bodyKeyToPreds[key] = append(preds, r.Head.Pred)
		}
	}

	var out []EGDSuggestion
	for _, preds := range bodyKeyToPreds {
		for i := 0; i < len(preds); i++ {
			for j := i + 1; j < len(preds); j++ {
				out = append(out, EGDSuggestion{
					PredA:  preds[i],
					PredB:  preds[j],
					Reason: "rules for both predicates share an identical body",
				})
			}
		}
	}
	return out
}

func bodyKey(body []ir.Lit) string {
	key := ""
	for _, l := range body {
		switch {
		case l.Atom != nil:
			key += "+" + l.Atom.String()
		case l.Neg != nil:
			key += "-" + l.Neg.Atom.String()
		case l.Compare != nil:
			key += fmt.Sprintf("?%s%s%s", l.Compare.Left, l.Compare.Op, l.Compare.Right)
		}
	}
	return key
}

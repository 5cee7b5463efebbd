package treesitter

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/trusted-programming/tree-grepper/internal/domain/valueobject"
)

// SubstitutionOperator is the predicate operator decoded into a substitution directive.
const SubstitutionOperator = "sub!"

// predicateArg is one decoded argument of a general predicate.
type predicateArg struct {
	capture   bool
	captureID uint32
	value     string
}

type predicate struct {
	operator string
	args     []predicateArg
}

// readPredicates lifts the raw predicate steps of every pattern into operator/argument form.
func readPredicates(q *sitter.Query) []predicate {
	var out []predicate
	for p := uint32(0); p < q.PatternCount(); p++ {
		for _, steps := range q.PredicatesForPattern(p) {
			if len(steps) == 0 || steps[0].Type != sitter.QueryPredicateStepTypeString {
				continue
			}
			pred := predicate{operator: q.StringValueForId(steps[0].ValueId)}
			for _, step := range steps[1:] {
				switch step.Type {
				case sitter.QueryPredicateStepTypeCapture:
					pred.args = append(pred.args, predicateArg{capture: true, captureID: step.ValueId})
				case sitter.QueryPredicateStepTypeString:
					pred.args = append(pred.args, predicateArg{value: q.StringValueForId(step.ValueId)})
				case sitter.QueryPredicateStepTypeDone:
				}
			}
			out = append(out, pred)
		}
	}
	return out
}

// decodeDirectives turns sub! predicates into directives, one per capture key.
// A later directive for the same key replaces an earlier one. Other operators are ignored.
func decodeDirectives(preds []predicate) []valueobject.SubstitutionDirective {
	var directives []valueobject.SubstitutionDirective
	position := make(map[uint32]int)
	for _, pred := range preds {
		if pred.operator != SubstitutionOperator {
			continue
		}
		var d valueobject.SubstitutionDirective
		for _, arg := range pred.args {
			if arg.capture {
				d.Key = arg.captureID + 1
			} else {
				d.Template = arg.value
			}
		}
		if !d.IsSet() {
			continue
		}
		if i, ok := position[d.Key]; ok {
			directives[i] = d
			continue
		}
		position[d.Key] = len(directives)
		directives = append(directives, d)
	}
	return directives
}

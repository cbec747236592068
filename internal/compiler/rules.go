package compiler

import (
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Rule is one named constraint over a run summary.
type Rule struct {
	Name        string
	Description string
	Check       cue.Value
	Pos         token.Pos
}

// RuleSet is a compiled rule file. CUE values only unify within the
// context that built them, so the set owns its context.
type RuleSet struct {
	ctx   *cue.Context
	Rules []Rule
}

// LoadRules compiles a rule file. filename is used for error positions.
func LoadRules(filename string, src []byte) (*RuleSet, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rules, err := CompileRules(v.LookupPath(cue.ParsePath("rule")))
	if err != nil {
		return nil, err
	}
	return &RuleSet{ctx: ctx, Rules: rules}, nil
}

// CompileRules parses the "rule" struct of a rule file.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`rule: clean: check: malformed: 0`)
//	rules, err := CompileRules(v.LookupPath(cue.ParsePath("rule")))
func CompileRules(v cue.Value) ([]Rule, error) {
	if !v.Exists() {
		return nil, &CompileError{
			Field:   "rule",
			Message: "rule file must define a rule struct",
		}
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rules []Rule
	for iter.Next() {
		rule, err := compileRule(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	if len(rules) == 0 {
		return nil, &CompileError{
			Field:   "rule",
			Message: "at least one rule is required",
			Pos:     v.Pos(),
		}
	}
	return rules, nil
}

func compileRule(name string, v cue.Value) (Rule, error) {
	rule := Rule{Name: name, Pos: v.Pos()}

	descVal := v.LookupPath(cue.ParsePath("description"))
	if descVal.Exists() {
		desc, err := descVal.String()
		if err != nil {
			return rule, &CompileError{
				Field:   "rule." + name + ".description",
				Message: "description must be a string",
				Pos:     descVal.Pos(),
			}
		}
		rule.Description = desc
	}

	check := v.LookupPath(cue.ParsePath("check"))
	if !check.Exists() {
		return rule, &CompileError{
			Field:   "rule." + name + ".check",
			Message: "check is required",
			Pos:     v.Pos(),
		}
	}
	if check.IncompleteKind() != cue.StructKind {
		return rule, &CompileError{
			Field:   "rule." + name + ".check",
			Message: "check must be a struct",
			Pos:     check.Pos(),
		}
	}
	rule.Check = check
	return rule, nil
}

// Violation is a rule the summary did not satisfy.
type Violation struct {
	Rule        string    `json:"rule"`
	Description string    `json:"description,omitempty"`
	Message     string    `json:"message"`
	Pos         token.Pos `json:"-"`
}

// Error implements the error interface.
func (v Violation) Error() string {
	if v.Pos.IsValid() {
		return fmt.Sprintf("%s:%d: rule %s: %s", v.Pos.Filename(), v.Pos.Line(), v.Rule, v.Message)
	}
	return fmt.Sprintf("rule %s: %s", v.Rule, v.Message)
}

// Check evaluates every rule against summary, which must marshal to a JSON
// object. Rules are evaluated independently and all violations are returned
// in rule order.
func (rs *RuleSet) Check(summary any) ([]Violation, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	doc := rs.ctx.CompileBytes(data, cue.Filename("summary.json"))
	if err := doc.Err(); err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}

	var violations []Violation
	for _, rule := range rs.Rules {
		if msg := evaluate(rule.Check, doc); msg != "" {
			violations = append(violations, Violation{
				Rule:        rule.Name,
				Description: rule.Description,
				Message:     msg,
				Pos:         rule.Pos,
			})
		}
	}
	return violations, nil
}

// evaluate returns "" when doc satisfies check, otherwise the reason.
func evaluate(check, doc cue.Value) string {
	if missing := missingFields(check, doc, ""); len(missing) > 0 {
		return "summary has no field " + strings.Join(missing, ", ")
	}
	if err := doc.Unify(check).Validate(cue.Concrete(true)); err != nil {
		return firstMessage(err)
	}
	return ""
}

// missingFields lists the paths check names that doc lacks. Unification
// alone would accept them by adding the field.
func missingFields(check, doc cue.Value, prefix string) []string {
	iter, err := check.Fields()
	if err != nil {
		return nil
	}

	var missing []string
	for iter.Next() {
		path := prefix + iter.Label()
		sub := doc.LookupPath(cue.MakePath(iter.Selector()))
		if !sub.Exists() {
			missing = append(missing, path)
			continue
		}
		if iter.Value().IncompleteKind() == cue.StructKind {
			missing = append(missing, missingFields(iter.Value(), sub, path+".")...)
		}
	}
	return missing
}

func firstMessage(err error) string {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	return errs[0].Error()
}

// CompileError is a rule file that cannot be compiled.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

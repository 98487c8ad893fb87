package scenario

import (
	"strings"

	"github.com/snsim/snsim/internal/sim"
)

// ParseSignature parses the nested-tuple signature grammar of spec.md
// section 9:
//
//	signature := stage ("," stage)* ; stage := "(" id ("," id)* ")" ; id := quoted-char
//
// The source language's loader accepts this as a literal Python tuple
// expression (evaluated with eval); systems implementations parse it
// directly instead. The whole signature is itself wrapped in one
// redundant outer pair of parens in every example file (a Python tuple
// literal requires it), which this parser strips before walking the
// stage list. Each stage is normalised to an unordered set of
// single-character service identifiers. known is the scenario's
// service-template catalogue; a reference outside it is
// InvalidServiceReference.
func ParseSignature(raw string, known map[string]*sim.ServiceTemplate) ([]sim.Stage, error) {
	text := strings.TrimSpace(raw)
	text = stripOuterParens(text)

	stageStrings, err := splitTopLevel(text)
	if err != nil {
		return nil, err
	}
	if len(stageStrings) == 0 {
		return nil, sim.NewError(sim.ErrInvalidSignatureFormat, "signature has no stages")
	}

	stages := make([]sim.Stage, 0, len(stageStrings))
	for _, raw := range stageStrings {
		stage, err := parseStage(raw, known)
		if err != nil {
			return nil, err
		}
		if len(stage) == 0 {
			return nil, sim.NewError(sim.ErrInvalidSignatureFormat, "stage \""+raw+"\" is empty")
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

// stripOuterParens removes one redundant pair of parens wrapping the
// entire string, if the string is fully enclosed by a single balanced
// pair (i.e. the opening paren's matching close is the final rune).
func stripOuterParens(s string) string {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return s
	}
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return s
			}
		}
	}
	return s[1 : len(s)-1]
}

// splitTopLevel splits s on commas that are not nested inside parens,
// dropping empty segments produced by a trailing comma.
func splitTopLevel(s string) ([]string, error) {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, sim.NewError(sim.ErrInvalidSignatureFormat, "unbalanced parentheses in signature")
			}
		case ',':
			if depth == 0 {
				segment := strings.TrimSpace(s[start:i])
				if segment != "" {
					out = append(out, segment)
				}
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, sim.NewError(sim.ErrInvalidSignatureFormat, "unbalanced parentheses in signature")
	}
	if segment := strings.TrimSpace(s[start:]); segment != "" {
		out = append(out, segment)
	}
	return out, nil
}

// parseStage parses one "(" id ("," id)* ")" stage, rejecting nested
// parens within it (TooManyNestedScopes) and unknown identifiers
// (InvalidServiceReference).
func parseStage(raw string, known map[string]*sim.ServiceTemplate) (sim.Stage, error) {
	if len(raw) < 2 || raw[0] != '(' || raw[len(raw)-1] != ')' {
		return nil, sim.NewError(sim.ErrInvalidSignatureFormat, "stage \""+raw+"\" is not a parenthesised list")
	}
	inner := raw[1 : len(raw)-1]
	if strings.ContainsAny(inner, "()") {
		return nil, sim.NewError(sim.ErrTooManyNestedScopes, "stage \""+raw+"\" nests beyond one level")
	}

	parts, err := splitTopLevel(inner)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(parts))
	stage := make(sim.Stage, 0, len(parts))
	for _, part := range parts {
		id, err := parseQuotedChar(part)
		if err != nil {
			return nil, err
		}
		if _, ok := known[id]; !ok {
			return nil, sim.NewError(sim.ErrInvalidServiceReference, "unknown service reference \""+id+"\"")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		stage = append(stage, id)
	}
	return stage, nil
}

// parseQuotedChar parses a single-character id token, quoted with
// either ' or ", e.g. 'A' or "A".
func parseQuotedChar(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if len(s) != 3 {
		return "", sim.NewError(sim.ErrInvalidSignatureFormat, "identifier \""+raw+"\" is not a single quoted character")
	}
	quote := s[0]
	if (quote != '\'' && quote != '"') || s[2] != quote {
		return "", sim.NewError(sim.ErrInvalidSignatureFormat, "identifier \""+raw+"\" is not a single quoted character")
	}
	return s[1:2], nil
}

package signalfit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var ErrBadCombo = errors.New("signalfit: invalid combination expression")

// EvalCombo evaluates an arithmetic combination expression such as
// "f0+2*f1" or "f2/2". Operands are numeric literals or signal labels
// resolved through lookup; operators are + - * / with the usual
// precedence. Parentheses are not supported.
func EvalCombo(expr string, lookup func(string) (float64, bool)) (float64, error) {
	p := &comboParser{tokens: tokenizeCombo(expr), lookup: lookup}
	v, err := p.parseSum()
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrBadCombo, expr, err)
	}
	if p.pos != len(p.tokens) {
		return 0, fmt.Errorf("%w: %q: trailing input", ErrBadCombo, expr)
	}
	return v, nil
}

// ComboTerms returns the signal labels referenced by an expression.
func ComboTerms(expr string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range tokenizeCombo(expr) {
		if isLabelToken(tok) && !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// IsCombo reports whether the text looks like a combination expression
// rather than a plain number: it must parse as more than a single operand
// and reference at least one label or operator.
func IsCombo(expr string) bool {
	tokens := tokenizeCombo(expr)
	if len(tokens) < 3 {
		return false
	}
	return strings.ContainsAny(expr, "+-*/")
}

type comboParser struct {
	tokens []string
	pos    int
	lookup func(string) (float64, bool)
}

func (p *comboParser) parseSum() (float64, error) {
	v, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for p.pos < len(p.tokens) {
		op := p.tokens[p.pos]
		if op != "+" && op != "-" {
			break
		}
		p.pos++
		rhs, err := p.parseProduct()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			v += rhs
		} else {
			v -= rhs
		}
	}
	return v, nil
}

func (p *comboParser) parseProduct() (float64, error) {
	v, err := p.parseOperand()
	if err != nil {
		return 0, err
	}
	for p.pos < len(p.tokens) {
		op := p.tokens[p.pos]
		if op != "*" && op != "/" {
			break
		}
		p.pos++
		rhs, err := p.parseOperand()
		if err != nil {
			return 0, err
		}
		if op == "*" {
			v *= rhs
		} else {
			if rhs == 0 {
				return 0, errors.New("division by zero")
			}
			v /= rhs
		}
	}
	return v, nil
}

func (p *comboParser) parseOperand() (float64, error) {
	neg := false
	if p.pos < len(p.tokens) && p.tokens[p.pos] == "-" {
		neg = true
		p.pos++
	}
	if p.pos >= len(p.tokens) {
		return 0, errors.New("missing operand")
	}

	tok := p.tokens[p.pos]
	p.pos++

	var v float64
	if isLabelToken(tok) {
		f, ok := p.lookup(tok)
		if !ok {
			return 0, fmt.Errorf("unknown signal %q", tok)
		}
		v = f
	} else {
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return 0, fmt.Errorf("bad operand %q", tok)
		}
		v = f
	}
	if neg {
		v = -v
	}
	return v, nil
}

func tokenizeCombo(expr string) []string {
	var tokens []string
	runes := []rune(strings.ReplaceAll(expr, " ", ""))
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case strings.ContainsRune("+-*/", r):
			tokens = append(tokens, string(r))
			i++
		case unicode.IsDigit(r) || r == '.':
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			tokens = append(tokens, string(runes[i:j]))
			i = j
		case unicode.IsLetter(r):
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			tokens = append(tokens, string(runes[i:j]))
			i = j
		default:
			// Unknown rune becomes its own token; the parser rejects it.
			tokens = append(tokens, string(r))
			i++
		}
	}
	return tokens
}

func isLabelToken(tok string) bool {
	if tok == "" {
		return false
	}
	return unicode.IsLetter([]rune(tok)[0])
}

package classifier

import (
	"fmt"
	"strings"

	"github.com/crimson-sun/plantrace/internal/model"
)

// ArgumentError reports an argument list that cannot be split into key=value pairs.
type ArgumentError struct {
	Fragment string // offending token
	Input    string // whole argument list
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q in %q", e.Fragment, e.Input)
}

// ParseArgs parses the inside of a parenthesized argument list.
//
//	"RS5"                    -> arg0=RS5
//	"RS1 other"              -> arg0=RS1, arg1=other
//	"tenant=RS8, node=N-1"   -> tenant=RS8, node=N-1
//	"w=1, e=[0.015, 0.025]"  -> w=1, e=[0.015, 0.025]
func ParseArgs(input string) (model.Args, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	tokens := splitTopLevel(input, ", ")
	if len(tokens) == 1 && !strings.Contains(tokens[0], "=") {
		var args model.Args
		for i, v := range strings.Split(input, " ") {
			args = append(args, model.Arg{Key: fmt.Sprintf("arg%d", i), Value: v})
		}
		return args, nil
	}

	args := make(model.Args, 0, len(tokens))
	for _, tok := range tokens {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return nil, &ArgumentError{Fragment: tok, Input: input}
		}
		args = append(args, model.Arg{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)})
	}
	return args, nil
}

// ParsePres parses a backtick-quoted precondition list such as
// "`RUN_AFTER(task=A.B.C)`, `STATE_READY()`, `NO_BIN`".
func ParsePres(input string) (model.Pres, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	input = strings.TrimSuffix(strings.TrimPrefix(input, "`"), "`")

	var pres model.Pres
	for _, item := range strings.Split(input, "`, `") {
		pre := model.Pre{Name: item}
		if i := strings.IndexByte(item, '('); i >= 0 && strings.HasSuffix(item, ")") {
			args, err := ParseArgs(item[i+1 : len(item)-1])
			if err != nil {
				return nil, err
			}
			pre = model.Pre{Name: item[:i], Args: args, Call: true}
		}
		if pre.Name == "" {
			return nil, &ArgumentError{Fragment: item, Input: input}
		}
		pres = append(pres, pre)
	}
	return pres, nil
}

// splitTopLevel splits s on sep, ignoring separators nested in brackets.
func splitTopLevel(s, sep string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			if depth > 0 {
				depth--
			}
		}
		if depth == 0 && strings.HasPrefix(s[i:], sep) {
			parts = append(parts, s[start:i])
			i += len(sep) - 1
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

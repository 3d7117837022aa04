package template

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// varPattern matches "$$", "${expr}" and "$NAME".
var varPattern = regexp.MustCompile(`\$(?:(\$)|\{([^}]*)\}|([A-Za-z_][A-Za-z0-9_]*))`)

// namePattern splits a braced expression into the variable name and the
// operator/operand tail.
var namePattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)(.*)$`)

// Lookup returns a variable's value and whether it is set.
type Lookup func(name string) (string, bool)

// Substitute performs compose-style variable substitution on input:
//
//	$VAR, ${VAR}      value, or empty when unset
//	${VAR:-default}   default when VAR is unset or empty
//	${VAR-default}    default when VAR is unset
//	${VAR:?err}       error when VAR is unset or empty
//	${VAR?err}        error when VAR is unset
//	$$                a literal "$"
//
// Variables are looked up in vars first, then in the process environment.
func Substitute(input string, vars map[string]string) (string, error) {
	return SubstituteWith(input, func(name string) (string, bool) {
		if v, ok := vars[name]; ok {
			return v, true
		}
		return os.LookupEnv(name)
	})
}

// SubstituteWith is Substitute with a caller supplied lookup.
func SubstituteWith(input string, lookup Lookup) (string, error) {
	if !strings.Contains(input, "$") {
		return input, nil
	}

	indices := varPattern.FindAllStringSubmatchIndex(input, -1)

	var builder strings.Builder
	builder.Grow(len(input))

	lastPos := 0
	for _, idx := range indices {
		builder.WriteString(input[lastPos:idx[0]])
		lastPos = idx[1]

		switch {
		case idx[2] >= 0:
			builder.WriteByte('$')
		case idx[4] >= 0:
			value, err := evaluateExpression(input[idx[4]:idx[5]], lookup)
			if err != nil {
				return "", err
			}
			builder.WriteString(value)
		default:
			value, _ := lookup(input[idx[6]:idx[7]])
			builder.WriteString(value)
		}
	}
	builder.WriteString(input[lastPos:])

	return builder.String(), nil
}

// evaluateExpression resolves the inside of a ${...} pair.
func evaluateExpression(expr string, lookup Lookup) (string, error) {
	m := namePattern.FindStringSubmatch(expr)
	if m == nil {
		return "", fmt.Errorf("invalid variable expression: ${%s}", expr)
	}
	name, tail := m[1], m[2]

	var op, operand string
	for _, candidate := range []string{":-", ":?", "-", "?"} {
		if strings.HasPrefix(tail, candidate) {
			op, operand = candidate, tail[len(candidate):]
			break
		}
	}
	if op == "" && tail != "" {
		return "", fmt.Errorf("invalid variable expression: ${%s}", expr)
	}

	value, exists := lookup(name)

	switch op {
	case "":
		return value, nil
	case "-":
		if exists {
			return value, nil
		}
		return operand, nil
	case ":-":
		if exists && value != "" {
			return value, nil
		}
		return operand, nil
	case "?":
		if exists {
			return value, nil
		}
		return "", fmt.Errorf("variable %s is not set: %s", name, operand)
	default: // ":?"
		if exists && value != "" {
			return value, nil
		}
		return "", fmt.Errorf("variable %s is not set or empty: %s", name, operand)
	}
}

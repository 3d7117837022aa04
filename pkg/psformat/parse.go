// Package psformat reads the parenthesised record format produced by
// `docker ps --format` with the Format template.
package psformat

import (
	"fmt"
	"strings"
)

// Format asks docker ps for the seven fields consumed by the container model,
// each wrapped in parentheses: id, image, size, status, names, labels, ports.
const Format = "({{.ID}}) ({{.Image}}) ({{.Size}}) ({{.Status}}) ({{.Names}}) ({{.Labels}}) ({{.Ports}})"

// FieldCount is the number of fields in a Format record.
const FieldCount = 7

// Parse returns the top-level parenthesised groups of line in order. Text
// outside parentheses is discarded; nested parentheses belong to the
// enclosing field. A group left open at the end of line is dropped. Field
// bytes are kept as they are, valid UTF-8 or not.
//
//	Parse("(a) (b(c)d) (e)") // ["a", "b(c)d", "e"]
func Parse(line string) []string {
	fields := []string{}
	var (
		depth int
		field strings.Builder
	)

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '(' && depth == 0:
			depth = 1
			field.Reset()
		case ch == '(':
			depth++
			field.WriteByte(ch)
		case ch == ')' && depth == 1:
			depth = 0
			fields = append(fields, field.String())
		case ch == ')' && depth > 1:
			depth--
			field.WriteByte(ch)
		case depth > 0:
			field.WriteByte(ch)
		}
	}

	return fields
}

// ParseN is Parse that fails unless exactly n fields were found.
func ParseN(line string, n int) ([]string, error) {
	fields := Parse(line)
	if len(fields) != n {
		return nil, fmt.Errorf("malformed record %q: want %d fields, got %d", line, n, len(fields))
	}
	return fields, nil
}

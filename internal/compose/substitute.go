// Package compose implements the release composer (spec §4.5): variable
// substitution, deterministic tarball assembly, and install-script
// generation.
package compose

import (
	"bytes"
	"fmt"

	"github.com/opsconf/scs/internal/vars"
)

const (
	openDelim = "{% "
	closeDelim = " %}"
)

// UndefinedVariableError is returned when a template references a
// kind.name with no binding (spec §4.4).
type UndefinedVariableError struct {
	Token string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("undefined variable %q", e.Token)
}

// Substitute replaces every "{% kind.name %}" occurrence in content with its
// bound value from bindings. It scans raw bytes rather than using
// text/template or a regexp: the delimiter is fixed and the replaced value
// may itself contain arbitrary bytes (including ones a regex engine would
// treat specially), so a byte-oriented scan is both simpler and correct
// where a templating engine would not be (spec §4.4 "non-regex-sensitive").
func Substitute(content []byte, bindings vars.Bindings) ([]byte, error) {
	var out bytes.Buffer
	rest := content
	for {
		start := bytes.Index(rest, []byte(openDelim))
		if start < 0 {
			out.Write(rest)
			break
		}
		out.Write(rest[:start])
		afterOpen := rest[start+len(openDelim):]
		end := bytes.Index(afterOpen, []byte(closeDelim))
		if end < 0 {
			// no matching close delimiter; treat the rest as literal text
			out.WriteString(openDelim)
			out.Write(afterOpen)
			break
		}
		token := string(afterOpen[:end])
		value, err := lookup(token, bindings)
		if err != nil {
			return nil, err
		}
		out.WriteString(value)
		rest = afterOpen[end+len(closeDelim):]
	}
	return out.Bytes(), nil
}

func lookup(token string, bindings vars.Bindings) (string, error) {
	value, ok := bindings[token]
	if !ok {
		return "", &UndefinedVariableError{Token: token}
	}
	return value, nil
}

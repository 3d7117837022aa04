// Package cliflags turns an ordered set of named options into command-line
// flag tokens in the getopt style understood by docker and docker compose.
//
//	o := cliflags.New().Set("d", true).Set("timeout", 5).Set("no_deps", true)
//	o.Encode() // ["-d", "--timeout=5", "--no-deps"]
package cliflags

import (
	"fmt"
	"strings"
)

// Options is an insertion-ordered mapping from option name to value.
// Values may be bool, string, any integer or float, fmt.Stringer, []string or nil.
type Options struct {
	names  []string
	values map[string]any
}

// New returns an empty option set.
func New() *Options {
	return &Options{values: make(map[string]any)}
}

// Set records name=value. Setting a name twice keeps its original position.
func (o *Options) Set(name string, value any) *Options {
	if name == "" {
		return o
	}
	if _, ok := o.values[name]; !ok {
		o.names = append(o.names, name)
	}
	o.values[name] = value
	return o
}

// SetDefault records name=value only when value differs from def, so that
// flags equal to the wrapped tool's own default are never emitted.
func (o *Options) SetDefault(name string, value, def any) *Options {
	if value == def {
		return o
	}
	return o.Set(name, value)
}

// Get returns the value recorded for name.
func (o *Options) Get(name string) (any, bool) {
	v, ok := o.values[name]
	return v, ok
}

// Names returns the option names in insertion order.
func (o *Options) Names() []string {
	out := make([]string, len(o.names))
	copy(out, o.names)
	return out
}

// Len reports the number of recorded options.
func (o *Options) Len() int {
	if o == nil {
		return 0
	}
	return len(o.names)
}

// Encode renders the options with the default Encoder.
func (o *Options) Encode() []string {
	return Encoder{}.Encode(o)
}

// Encoder controls how falsy long options are rendered.
type Encoder struct {
	// NegateFalse emits --no-<name> for a long option explicitly set to false.
	// Short options and nil values are always omitted.
	NegateFalse bool
}

// Encode converts the option set into flag tokens.
//
// A single-character name yields "-x" (true) or "-x", "value". Longer names
// have underscores rewritten to hyphens and yield "--long" or "--long=value".
// false and nil are omitted; any other value, the empty string included, is
// emitted in its string form. A []string emits the flag once per element.
func (e Encoder) Encode(o *Options) []string {
	if o == nil {
		return nil
	}
	tokens := make([]string, 0, len(o.names))
	for _, name := range o.names {
		tokens = append(tokens, e.encodeOne(name, o.values[name])...)
	}
	return tokens
}

// Encode is shorthand for Encoder{}.Encode(o).
func Encode(o *Options) []string {
	return Encoder{}.Encode(o)
}

func (e Encoder) encodeOne(name string, value any) []string {
	short := len(name) == 1
	if !short {
		name = strings.ReplaceAll(name, "_", "-")
	}

	switch v := value.(type) {
	case nil:
		return nil
	case bool:
		switch {
		case v && short:
			return []string{"-" + name}
		case v:
			return []string{"--" + name}
		case e.NegateFalse && !short:
			return []string{"--no-" + name}
		default:
			return nil
		}
	case []string:
		var tokens []string
		for _, item := range v {
			tokens = append(tokens, flagWithValue(name, short, item)...)
		}
		return tokens
	case string:
		return flagWithValue(name, short, v)
	default:
		return flagWithValue(name, short, fmt.Sprint(v))
	}
}

func flagWithValue(name string, short bool, value string) []string {
	if short {
		return []string{"-" + name, value}
	}
	return []string{"--" + name + "=" + value}
}

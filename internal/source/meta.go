// internal/source/meta.go
//
// Loosely-typed metadata values.
//
// Context
// -------
// WordPress meta tables store values as strings that may carry PHP
// serialization: scalars, lists, nested maps, or—worst case—serialized
// objects.  We model the result as a small tagged union instead of `any`,
// and the decoder refuses to materialize object payloads: `O:`/`C:`
// envelopes are kept verbatim as opaque scalar strings.  That closes the
// deserialization-injection hole legacy data would otherwise open.
//
// The decoder is deliberately small: it understands s/i/d/b/N/a and
// nothing else.  Anything it cannot parse round-trips as the raw string.
package source

import (
	"strconv"
	"strings"
)

// Kind discriminates the metadata union.
type Kind int

const (
	KindScalar Kind = iota
	KindList
	KindMap
)

// MapEntry preserves source ordering; WordPress meta is order-sensitive
// for repeated keys.
type MapEntry struct {
	Key   string
	Value Value
}

// Value is one decoded metadata value.
type Value struct {
	Kind   Kind
	Scalar string
	List   []Value
	Map    []MapEntry
}

// Scalar builds a scalar Value.
func ScalarValue(s string) Value { return Value{Kind: KindScalar, Scalar: s} }

// String renders a best-effort flat form: scalars verbatim, containers
// empty.  Callers that need structure should switch on Kind.
func (v Value) String() string {
	if v.Kind == KindScalar {
		return v.Scalar
	}
	return ""
}

// Int64 parses the scalar form as an integer id, 0 when not numeric.
func (v Value) Int64() int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// First returns the first scalar in document order.  For a scalar it is
// the value itself; for containers it walks depth-first.  Mirrors the
// original's `reset()` access on maybe-array meta.
func (v Value) First() string {
	found := ""
	v.Walk(func(s string) bool {
		found = s
		return false
	})
	return found
}

// Walk visits every scalar depth-first.  Return false from fn to stop.
func (v Value) Walk(fn func(s string) bool) bool {
	switch v.Kind {
	case KindScalar:
		return fn(v.Scalar)
	case KindList:
		for _, e := range v.List {
			if !e.Walk(fn) {
				return false
			}
		}
	case KindMap:
		for _, e := range v.Map {
			if !e.Value.Walk(fn) {
				return false
			}
		}
	}
	return true
}

// Lookup returns the value of the first map entry with the given key.
func (v Value) Lookup(key string) (Value, bool) {
	if v.Kind != KindMap {
		return Value{}, false
	}
	for _, e := range v.Map {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// DecodeMetaValue turns a raw meta_value column into a Value.  Strings
// that do not look serialized, fail to parse, or carry object payloads
// come back as opaque scalars.
func DecodeMetaValue(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if !looksSerialized(trimmed) {
		return ScalarValue(raw)
	}
	// Objects are never materialized.
	if trimmed[0] == 'O' || trimmed[0] == 'C' {
		return ScalarValue(raw)
	}
	p := &phpParser{in: trimmed}
	v, err := p.parseValue()
	if err != nil || p.pos != len(p.in) {
		return ScalarValue(raw)
	}
	return v
}

// looksSerialized is the cheap gate the original applied before
// attempting an unserialize: `<tag>:` or the literal `N;`.
func looksSerialized(s string) bool {
	if len(s) < 2 {
		return false
	}
	if s == "N;" {
		return true
	}
	switch s[0] {
	case 's', 'i', 'd', 'b', 'a', 'O', 'C':
		return s[1] == ':'
	}
	return false
}

/*──────────────────────── php serialization parser ─────────────────────────*/

type phpParser struct {
	in  string
	pos int
}

type parseError string

func (e parseError) Error() string { return string(e) }

var errBadPayload = parseError("source: bad serialized payload")

func (p *phpParser) parseValue() (Value, error) {
	if p.pos >= len(p.in) {
		return Value{}, errBadPayload
	}
	switch p.in[p.pos] {
	case 'N':
		if err := p.expect("N;"); err != nil {
			return Value{}, err
		}
		return ScalarValue(""), nil
	case 'b':
		if err := p.expect("b:"); err != nil {
			return Value{}, err
		}
		c, err := p.readUntil(';')
		if err != nil {
			return Value{}, err
		}
		if c == "1" {
			return ScalarValue("1"), nil
		}
		return ScalarValue(""), nil
	case 'i', 'd':
		if err := p.expect(p.in[p.pos:p.pos+1] + ":"); err != nil {
			return Value{}, err
		}
		n, err := p.readUntil(';')
		if err != nil {
			return Value{}, err
		}
		if _, ferr := strconv.ParseFloat(n, 64); ferr != nil {
			return Value{}, errBadPayload
		}
		return ScalarValue(n), nil
	case 's':
		return p.parseString()
	case 'a':
		return p.parseArray()
	}
	return Value{}, errBadPayload
}

func (p *phpParser) parseString() (Value, error) {
	if err := p.expect("s:"); err != nil {
		return Value{}, err
	}
	lenStr, err := p.readUntil(':')
	if err != nil {
		return Value{}, err
	}
	n, err := strconv.Atoi(lenStr)
	if err != nil || n < 0 {
		return Value{}, errBadPayload
	}
	// s:3:"abc";  — the length is in bytes, quotes are literal.
	if p.pos >= len(p.in) || p.in[p.pos] != '"' {
		return Value{}, errBadPayload
	}
	p.pos++
	if p.pos+n+2 > len(p.in) {
		return Value{}, errBadPayload
	}
	s := p.in[p.pos : p.pos+n]
	p.pos += n
	if err := p.expect(`";`); err != nil {
		return Value{}, err
	}
	return ScalarValue(s), nil
}

func (p *phpParser) parseArray() (Value, error) {
	if err := p.expect("a:"); err != nil {
		return Value{}, err
	}
	countStr, err := p.readUntil(':')
	if err != nil {
		return Value{}, err
	}
	count, err := strconv.Atoi(countStr)
	if err != nil || count < 0 {
		return Value{}, errBadPayload
	}
	if err := p.expect("{"); err != nil {
		return Value{}, err
	}

	entries := make([]MapEntry, 0, count)
	sequential := true
	for i := 0; i < count; i++ {
		key, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		if key.Kind != KindScalar {
			return Value{}, errBadPayload
		}
		val, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		entries = append(entries, MapEntry{Key: key.Scalar, Value: val})
		if key.Scalar != strconv.Itoa(i) {
			sequential = false
		}
	}
	if err := p.expect("}"); err != nil {
		return Value{}, err
	}

	// PHP arrays with 0..n-1 integer keys are lists, everything else a map.
	if sequential {
		list := make([]Value, len(entries))
		for i, e := range entries {
			list[i] = e.Value
		}
		return Value{Kind: KindList, List: list}, nil
	}
	return Value{Kind: KindMap, Map: entries}, nil
}

func (p *phpParser) expect(tok string) error {
	if !strings.HasPrefix(p.in[p.pos:], tok) {
		return errBadPayload
	}
	p.pos += len(tok)
	return nil
}

func (p *phpParser) readUntil(delim byte) (string, error) {
	i := strings.IndexByte(p.in[p.pos:], delim)
	if i < 0 {
		return "", errBadPayload
	}
	s := p.in[p.pos : p.pos+i]
	p.pos += i + 1
	return s, nil
}

// Encode renders the value back into storable form: scalars stay plain
// strings, lists and maps re-serialize into the source platform's array
// format so downstream consumers read them exactly as the origin wrote
// them.
func (v Value) Encode() string {
	if v.Kind == KindScalar {
		return v.Scalar
	}
	var b strings.Builder
	v.encode(&b)
	return b.String()
}

func (v Value) encode(b *strings.Builder) {
	switch v.Kind {
	case KindList:
		b.WriteString("a:")
		b.WriteString(strconv.Itoa(len(v.List)))
		b.WriteString(":{")
		for i, item := range v.List {
			b.WriteString("i:")
			b.WriteString(strconv.Itoa(i))
			b.WriteString(";")
			item.encode(b)
		}
		b.WriteString("}")
	case KindMap:
		b.WriteString("a:")
		b.WriteString(strconv.Itoa(len(v.Map)))
		b.WriteString(":{")
		for _, e := range v.Map {
			if n, err := strconv.ParseInt(e.Key, 10, 64); err == nil {
				b.WriteString("i:")
				b.WriteString(strconv.FormatInt(n, 10))
				b.WriteString(";")
			} else {
				encodeString(b, e.Key)
			}
			e.Value.encode(b)
		}
		b.WriteString("}")
	default:
		encodeString(b, v.Scalar)
	}
}

func encodeString(b *strings.Builder, s string) {
	b.WriteString("s:")
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteString(`:"`)
	b.WriteString(s)
	b.WriteString(`";`)
}

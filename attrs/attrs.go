// Package attrs implements the attribute-list wire encoding used for
// token payloads and keyring files.
//
// An attribute list is an ordered sequence of (name, value) pairs.  The
// wire form is a sequence of "name=value;" records.  A literal ';' inside
// a value is escaped by doubling, so ";;" decodes to a single ';'.  Names
// are short ASCII tokens and must not contain '=' or ';'.
//
// Values are arbitrary bytes.  The typed accessors layer strings, 32-bit
// unsigned integers (network byte order), and timestamps on top of the raw
// byte values.  Timestamps are 32-bit unsigned seconds since the epoch,
// which means the wire format cannot represent times past 2106.
package attrs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/oarkflow/webauth"
)

// Pair is a single named attribute.
type Pair struct {
	Name  string
	Value []byte
}

// List is an ordered attribute list.
type List struct {
	pairs []Pair
}

// New returns an empty list with room for n attributes.
func New(n int) *List {
	return &List{pairs: make([]Pair, 0, n)}
}

// Len returns the number of attributes in the list.
func (l *List) Len() int { return len(l.pairs) }

// Pairs returns the attributes in order.  The slice is the list's own
// storage; callers must not modify it.
func (l *List) Pairs() []Pair { return l.pairs }

// Add appends a raw binary attribute.  The value is stored as given, not
// copied.
func (l *List) Add(name string, value []byte) {
	l.pairs = append(l.pairs, Pair{Name: name, Value: value})
}

// AddString appends a string attribute.
func (l *List) AddString(name, value string) {
	l.Add(name, []byte(value))
}

// AddUint32 appends a 32-bit unsigned attribute in network byte order.
func (l *List) AddUint32(name string, value uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], value)
	l.Add(name, buf[:])
}

// AddTime appends a timestamp attribute as 32-bit unsigned seconds since
// the epoch.  The zero time encodes as 0.
func (l *List) AddTime(name string, t time.Time) {
	var secs uint32
	if !t.IsZero() {
		secs = uint32(t.Unix())
	}
	l.AddUint32(name, secs)
}

// Get returns the value of the first attribute with the given name.
func (l *List) Get(name string) ([]byte, bool) {
	for _, p := range l.pairs {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// GetString returns a string attribute.
func (l *List) GetString(name string) (string, bool) {
	v, ok := l.Get(name)
	if !ok {
		return "", false
	}
	return string(v), true
}

// GetUint32 returns a 32-bit unsigned attribute.  A value of the wrong
// width is corrupt.
func (l *List) GetUint32(name string) (uint32, bool, error) {
	v, ok := l.Get(name)
	if !ok {
		return 0, false, nil
	}
	if len(v) != 4 {
		return 0, false, fmt.Errorf("%w: attribute %s is %d bytes, expected 4",
			webauth.ErrCorrupt, name, len(v))
	}
	return binary.BigEndian.Uint32(v), true, nil
}

// GetTime returns a timestamp attribute.  A wire value of 0 decodes to the
// zero time.
func (l *List) GetTime(name string) (time.Time, bool, error) {
	secs, ok, err := l.GetUint32(name)
	if err != nil || !ok {
		return time.Time{}, ok, err
	}
	if secs == 0 {
		return time.Time{}, true, nil
	}
	return time.Unix(int64(secs), 0), true, nil
}

// Encode serializes the list to its wire form.
func (l *List) Encode() []byte {
	size := 0
	for _, p := range l.pairs {
		size += len(p.Name) + len(p.Value) + 2
	}
	out := make([]byte, 0, size+size/8)
	for _, p := range l.pairs {
		out = append(out, p.Name...)
		out = append(out, '=')
		for _, c := range p.Value {
			if c == ';' {
				out = append(out, ';', ';')
			} else {
				out = append(out, c)
			}
		}
		out = append(out, ';')
	}
	return out
}

// Decode parses a wire-form attribute list.  An unterminated final record,
// a record with no '=', or any other truncation is corrupt.
func Decode(data []byte) (*List, error) {
	l := New(8)
	for i := 0; i < len(data); {
		eq := bytes.IndexByte(data[i:], '=')
		if eq < 0 {
			return nil, fmt.Errorf("%w: attribute with no value separator", webauth.ErrCorrupt)
		}
		name := data[i : i+eq]
		if bytes.IndexByte(name, ';') >= 0 {
			return nil, fmt.Errorf("%w: attribute with no value separator", webauth.ErrCorrupt)
		}
		if len(name) == 0 {
			return nil, fmt.Errorf("%w: attribute with empty name", webauth.ErrCorrupt)
		}
		i += eq + 1

		var value []byte
		done := false
		for i < len(data) {
			c := data[i]
			if c != ';' {
				value = append(value, c)
				i++
				continue
			}
			if i+1 < len(data) && data[i+1] == ';' {
				value = append(value, ';')
				i += 2
				continue
			}
			i++
			done = true
			break
		}
		if !done {
			return nil, fmt.Errorf("%w: unterminated attribute %s", webauth.ErrCorrupt, name)
		}
		l.Add(string(name), value)
	}
	return l, nil
}

package jsondb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/maruel/ksid"
)

// Key is a document key as received from clients. It decodes from a JSON
// string or number and is always handled as a string.
type Key string

// UnmarshalJSON implements json.Unmarshaler.
func (k *Key) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty key", ErrValidation)
	}
	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = Key(s)
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*k = Key(n.String())
	default:
		return fmt.Errorf("%w: key must be a string or a number, got %s", ErrValidation, data)
	}
	return nil
}

// Strings converts keys to plain strings.
func Strings(keys []Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}

// keyGenerator hands out unique keys for one read-modify-write cycle. It
// tracks the keys it produced so a bulk call never reuses one.
type keyGenerator struct {
	doc       *Document
	increment bool
	next      uint64
}

func newKeyGenerator(doc *Document, autoIncrement bool) *keyGenerator {
	g := &keyGenerator{doc: doc, increment: autoIncrement}
	if autoIncrement {
		found := false
		var highest uint64
		for k := range doc.All() {
			n, ok := parseIndex(k)
			if !ok {
				continue
			}
			if !found || n > highest {
				highest = n
				found = true
			}
		}
		if found {
			g.next = highest + 1
		}
	}
	return g
}

// newKey returns a key absent from the document. The caller inserts it before
// asking for the next one.
func (g *keyGenerator) newKey() string {
	if g.increment {
		for {
			k := strconv.FormatUint(g.next, 10)
			g.next++
			if !g.doc.Has(k) {
				return k
			}
		}
	}
	for {
		k := ksid.NewID().String()
		if !g.doc.Has(k) {
			return k
		}
	}
}

// parseIndex parses keys made only of decimal digits.
func parseIndex(k string) (uint64, bool) {
	if k == "" {
		return 0, false
	}
	for i := 0; i < len(k); i++ {
		if k[i] < '0' || k[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(k, 10, 63)
	if err != nil {
		return 0, false
	}
	return n, true
}

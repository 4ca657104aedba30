// Package odds normalizes raw bookmaker quotes into the canonical
// fixed-shape odds record the rule matcher consumes.
package odds

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Key identifies one of the canonical markets the engine understands.
type Key string

const (
	// KeyGoals45 is the primary key: exact total goals 4-5, combined
	// from the "4" and "5" outcomes. A match with no value here has no
	// usable odds at all.
	KeyGoals45 Key = "4-5"

	KeyOver25  Key = "2,5 Ü"
	KeyUnder25 Key = "2,5 A"
	KeyOver35  Key = "3,5 Ü"
	KeyUnder35 Key = "3,5 A"
	KeyGoals23 Key = "2-3"
	KeyBTTS    Key = "VAR"
)

// allKeys is the closed key set, in wire order.
var allKeys = []Key{KeyGoals45, KeyOver25, KeyUnder25, KeyOver35, KeyUnder35, KeyGoals23, KeyBTTS}

// Keys returns the closed set of canonical keys in wire order.
func Keys() []Key {
	out := make([]Key, len(allKeys))
	copy(out, allKeys)
	return out
}

func validKey(k Key) bool {
	for _, kk := range allKeys {
		if k == kk {
			return true
		}
	}
	return false
}

// Canonical is the fixed-shape odds record for one match. Every
// canonical key is conceptually present; a key with no usable odds is
// absent from the underlying map and encodes as JSON null. Construct
// it with Normalize and treat it as immutable afterwards.
type Canonical struct {
	values map[Key]decimal.Decimal
}

// Value returns the odds for a key and whether it is filled.
func (c Canonical) Value(k Key) (decimal.Decimal, bool) {
	v, ok := c.values[k]
	return v, ok
}

// HasPrimary reports whether the primary key ("4-5") is filled.
func (c Canonical) HasPrimary() bool {
	_, ok := c.values[KeyGoals45]
	return ok
}

// fill records a value for a key unless the key is already filled.
// First write wins; later bookmakers never overwrite.
func (c Canonical) fill(k Key, v decimal.Decimal) {
	if _, ok := c.values[k]; ok {
		return
	}
	c.values[k] = v
}

// MarshalJSON encodes the record with every canonical key present,
// null where no odds were found. Values encode as plain JSON numbers.
func (c Canonical) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range allKeys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(string(k))
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		if v, ok := c.values[k]; ok {
			buf.WriteString(v.String())
		} else {
			buf.WriteString("null")
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the wire form produced by MarshalJSON;
// unknown keys are rejected so stored records cannot drift silently.
func (c *Canonical) UnmarshalJSON(data []byte) error {
	raw := map[string]*float64{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.values = make(map[Key]decimal.Decimal, len(raw))
	for name, v := range raw {
		k := Key(name)
		if !validKey(k) {
			return fmt.Errorf("odds: unknown canonical key %q", name)
		}
		if v != nil {
			c.values[k] = decimal.NewFromFloat(*v)
		}
	}
	return nil
}

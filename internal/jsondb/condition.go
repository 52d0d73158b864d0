package jsondb

import (
	"cmp"
	"fmt"
	"strings"
)

// Criteria is a comparison operator of a Condition.
type Criteria string

// Supported criteria.
const (
	CriteriaEqual        Criteria = "=="
	CriteriaNotEqual     Criteria = "!="
	CriteriaLess         Criteria = "<"
	CriteriaLessEqual    Criteria = "<="
	CriteriaGreater      Criteria = ">"
	CriteriaGreaterEqual Criteria = ">="
	CriteriaIn           Criteria = "in"
	CriteriaIncludes     Criteria = "includes"
	CriteriaContains     Criteria = "contains"
	CriteriaStartsWith   Criteria = "startsWith"
	CriteriaEndsWith     Criteria = "endsWith"

	CriteriaArrayContains     Criteria = "array-contains"
	CriteriaArrayContainsAny  Criteria = "array-contains-any"
	CriteriaArrayContainsNone Criteria = "array-contains-none"
	CriteriaArrayLengthEq     Criteria = "array-length-eq"
	CriteriaArrayLengthDf     Criteria = "array-length-df"
	CriteriaArrayLengthGt     Criteria = "array-length-gt"
	CriteriaArrayLengthLt     Criteria = "array-length-lt"
	CriteriaArrayLengthGe     Criteria = "array-length-ge"
	CriteriaArrayLengthLe     Criteria = "array-length-le"
)

type criteriaSet map[Criteria]struct{}

func newCriteriaSet(criteria ...Criteria) criteriaSet {
	s := make(criteriaSet, len(criteria))
	for _, c := range criteria {
		s[c] = struct{}{}
	}
	return s
}

// applicable lists the criteria each kind supports. Kinds missing from the
// table (null, object) match nothing.
var applicable = map[Kind]criteriaSet{
	KindBool:  newCriteriaSet(CriteriaEqual, CriteriaNotEqual),
	KindInt:   newCriteriaSet(numberCriteria...),
	KindFloat: newCriteriaSet(numberCriteria...),
	KindString: newCriteriaSet(
		CriteriaEqual, CriteriaNotEqual,
		CriteriaLess, CriteriaLessEqual, CriteriaGreater, CriteriaGreaterEqual,
		CriteriaIn, CriteriaIncludes, CriteriaContains, CriteriaStartsWith, CriteriaEndsWith,
	),
	KindArray: newCriteriaSet(
		CriteriaArrayContains, CriteriaArrayContainsAny, CriteriaArrayContainsNone,
		CriteriaArrayLengthEq, CriteriaArrayLengthDf, CriteriaArrayLengthGt,
		CriteriaArrayLengthLt, CriteriaArrayLengthGe, CriteriaArrayLengthLe,
	),
}

var numberCriteria = []Criteria{
	CriteriaEqual, CriteriaNotEqual,
	CriteriaLess, CriteriaLessEqual, CriteriaGreater, CriteriaGreaterEqual,
	CriteriaIn,
}

// AllCriteria returns every supported criteria.
func AllCriteria() []Criteria {
	return []Criteria{
		CriteriaEqual, CriteriaNotEqual,
		CriteriaLess, CriteriaLessEqual, CriteriaGreater, CriteriaGreaterEqual,
		CriteriaIn, CriteriaIncludes, CriteriaContains, CriteriaStartsWith, CriteriaEndsWith,
		CriteriaArrayContains, CriteriaArrayContainsAny, CriteriaArrayContainsNone,
		CriteriaArrayLengthEq, CriteriaArrayLengthDf, CriteriaArrayLengthGt,
		CriteriaArrayLengthLt, CriteriaArrayLengthGe, CriteriaArrayLengthLe,
	}
}

// Valid reports whether c is a known criteria for any kind.
func (c Criteria) Valid() bool {
	for _, s := range applicable {
		if _, ok := s[c]; ok {
			return true
		}
	}
	return false
}

// Condition is one filter of a search.
type Condition struct {
	Field      string   `json:"field" jsonschema:"description=Dotted path of the field to test"`
	Criteria   Criteria `json:"criteria" jsonschema:"description=Comparison operator"`
	Value      Value    `json:"value" jsonschema:"description=Operand compared to the field"`
	IgnoreCase bool     `json:"ignoreCase,omitempty" jsonschema:"description=Fold case before comparing strings"`
}

// Validate checks the condition is well formed.
func (c *Condition) Validate() error {
	if splitPath(c.Field) == nil {
		return fmt.Errorf("%w: invalid field %q", ErrValidation, c.Field)
	}
	if !c.Criteria.Valid() {
		return fmt.Errorf("%w: unknown criteria %q", ErrValidation, c.Criteria)
	}
	return nil
}

// ValidateConditions validates every condition.
func ValidateConditions(conditions []Condition) error {
	for i := range conditions {
		if err := conditions[i].Validate(); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}
	return nil
}

// Evaluate reports whether doc satisfies every condition. A field path absent
// from doc and an operator that does not apply to the field's kind both yield
// false.
func Evaluate(doc Value, conditions []Condition) bool {
	for i := range conditions {
		if !matches(doc, &conditions[i]) {
			return false
		}
	}
	return true
}

func matches(doc Value, c *Condition) bool {
	field, ok := lookup(doc, splitPath(c.Field))
	if !ok {
		return false
	}
	if _, ok := applicable[field.Kind()][c.Criteria]; !ok {
		return false
	}
	switch field.Kind() {
	case KindBool:
		return matchBool(field, c)
	case KindInt, KindFloat:
		return matchNumber(field, c)
	case KindString:
		return matchString(field, c)
	case KindArray:
		return matchArray(field, c)
	default:
		return false
	}
}

func matchBool(field Value, c *Condition) bool {
	eq := c.Value.Kind() == KindBool && field.BoolValue() == c.Value.BoolValue()
	if c.Criteria == CriteriaNotEqual {
		return !eq
	}
	return eq
}

func matchNumber(field Value, c *Condition) bool {
	switch c.Criteria {
	case CriteriaIn:
		return c.Value.Kind() == KindArray && containsValue(c.Value.Items(), field, false)
	case CriteriaNotEqual:
		return !c.Value.IsNumber() || compareNumbers(field, c.Value) != 0
	}
	if !c.Value.IsNumber() {
		return false
	}
	return compared(c.Criteria, compareNumbers(field, c.Value))
}

func compareNumbers(a, b Value) int {
	if a.Kind() == KindInt && b.Kind() == KindInt {
		ai, _ := a.Integer()
		bi, _ := b.Integer()
		return cmp.Compare(ai, bi)
	}
	return cmp.Compare(a.FloatValue(), b.FloatValue())
}

// compared maps an ordering criteria onto the result of a comparison.
func compared(c Criteria, r int) bool {
	switch c {
	case CriteriaEqual:
		return r == 0
	case CriteriaNotEqual:
		return r != 0
	case CriteriaLess:
		return r < 0
	case CriteriaLessEqual:
		return r <= 0
	case CriteriaGreater:
		return r > 0
	case CriteriaGreaterEqual:
		return r >= 0
	default:
		return false
	}
}

func fold(s string, ignoreCase bool) string {
	if ignoreCase {
		return strings.ToLower(s)
	}
	return s
}

func matchString(field Value, c *Condition) bool {
	if c.Criteria == CriteriaIn {
		return c.Value.Kind() == KindArray && containsValue(c.Value.Items(), field, c.IgnoreCase)
	}
	if c.Value.Kind() != KindString {
		return c.Criteria == CriteriaNotEqual
	}
	s := fold(field.StringValue(), c.IgnoreCase)
	v := fold(c.Value.StringValue(), c.IgnoreCase)
	switch c.Criteria {
	case CriteriaIncludes, CriteriaContains:
		return strings.Contains(s, v)
	case CriteriaStartsWith:
		return strings.HasPrefix(s, v)
	case CriteriaEndsWith:
		return strings.HasSuffix(s, v)
	default:
		return compared(c.Criteria, strings.Compare(s, v))
	}
}

func matchArray(field Value, c *Condition) bool {
	items := field.Items()
	switch c.Criteria {
	case CriteriaArrayContains:
		return containsValue(items, c.Value, c.IgnoreCase)
	case CriteriaArrayContainsAny, CriteriaArrayContainsNone:
		if c.Value.Kind() != KindArray {
			return false
		}
		overlap := false
		for _, want := range c.Value.Items() {
			if containsValue(items, want, c.IgnoreCase) {
				overlap = true
				break
			}
		}
		if c.Criteria == CriteriaArrayContainsAny {
			return overlap
		}
		return !overlap
	}
	n, ok := c.Value.Integer()
	if !ok {
		return false
	}
	r := cmp.Compare(int64(len(items)), n)
	switch c.Criteria {
	case CriteriaArrayLengthEq:
		return r == 0
	case CriteriaArrayLengthDf:
		return r != 0
	case CriteriaArrayLengthGt:
		return r > 0
	case CriteriaArrayLengthLt:
		return r < 0
	case CriteriaArrayLengthGe:
		return r >= 0
	case CriteriaArrayLengthLe:
		return r <= 0
	default:
		return false
	}
}

// containsValue reports whether items holds want. With ignoreCase, strings
// compare case-insensitively.
func containsValue(items []Value, want Value, ignoreCase bool) bool {
	for _, item := range items {
		if ignoreCase && item.Kind() == KindString && want.Kind() == KindString {
			if strings.EqualFold(item.StringValue(), want.StringValue()) {
				return true
			}
			continue
		}
		if Equal(item, want) {
			return true
		}
	}
	return false
}

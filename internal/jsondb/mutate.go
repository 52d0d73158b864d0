package jsondb

import (
	"fmt"
	"math"
	"slices"
)

// Operation is the kind of change applied by an EditOperation.
type Operation string

// Supported operations.
const (
	OpSet         Operation = "set"
	OpRemove      Operation = "remove"
	OpAppend      Operation = "append"
	OpInvert      Operation = "invert"
	OpIncrement   Operation = "increment"
	OpDecrement   Operation = "decrement"
	OpArrayPush   Operation = "array-push"
	OpArrayDelete Operation = "array-delete"
	OpArraySplice Operation = "array-splice"
)

// AllOperations returns every supported operation.
func AllOperations() []Operation {
	return []Operation{OpSet, OpRemove, OpAppend, OpInvert, OpIncrement, OpDecrement, OpArrayPush, OpArrayDelete, OpArraySplice}
}

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	return slices.Contains(AllOperations(), o)
}

// needsValue reports whether the operation requires an operand.
func (o Operation) needsValue() bool {
	switch o {
	case OpSet, OpAppend, OpArrayPush, OpArrayDelete, OpArraySplice:
		return true
	default:
		return false
	}
}

// EditOperation changes one field of one document.
type EditOperation struct {
	ID        Key       `json:"id" jsonschema:"description=Key of the document to edit"`
	Field     string    `json:"field" jsonschema:"description=Dotted path of the field to edit"`
	Operation Operation `json:"operation" jsonschema:"description=Edit operation"`
	Value     Value     `json:"value" jsonschema:"description=Operand of the operation"`
}

// Validate checks the edit is well formed. It does not look at the document.
func (e *EditOperation) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrValidation)
	}
	if splitPath(e.Field) == nil {
		return fmt.Errorf("%w: invalid field %q", ErrValidation, e.Field)
	}
	if !e.Operation.Valid() {
		return fmt.Errorf("%w: unknown operation %q", ErrValidation, e.Operation)
	}
	if e.Operation.needsValue() && !e.Value.IsDefined() {
		return fmt.Errorf("%w: operation %q requires a value", ErrValidation, e.Operation)
	}
	return nil
}

// apply runs e against the document it targets in coll. It returns false and
// leaves coll untouched when a precondition does not hold.
func (e *EditOperation) apply(coll *Document) bool {
	if e.Validate() != nil {
		return false
	}
	target, ok := coll.Get(string(e.ID))
	if !ok || target.Kind() != KindObject {
		return false
	}
	path := splitPath(e.Field)
	create := e.Operation == OpSet || e.Operation == OpArrayPush
	holder, ok := parent(target.Document(), path, create)
	if !ok {
		// Removing below a missing parent is a no-op.
		return e.Operation == OpRemove
	}
	name := path[len(path)-1]
	current, exists := holder.Get(name)
	next, ok := e.mutate(current, exists)
	if !ok {
		return false
	}
	if e.Operation == OpRemove {
		holder.Delete(name)
		return true
	}
	holder.Set(name, next)
	return true
}

// mutate computes the new field value from the current one.
func (e *EditOperation) mutate(current Value, exists bool) (Value, bool) {
	switch e.Operation {
	case OpSet:
		return e.Value, true
	case OpRemove:
		return Value{}, true
	case OpAppend:
		if !exists || current.Kind() != KindString || e.Value.Kind() != KindString {
			return Value{}, false
		}
		return Text(current.StringValue() + e.Value.StringValue()), true
	case OpInvert:
		if !exists || current.Kind() != KindBool {
			return Value{}, false
		}
		return Bool(!current.BoolValue()), true
	case OpIncrement, OpDecrement:
		return e.step(current, exists)
	case OpArrayPush:
		if !exists {
			return Array(e.Value), true
		}
		if current.Kind() != KindArray {
			return Value{}, false
		}
		items := append(slices.Clip(current.Items()), e.Value)
		return Array(items...), true
	case OpArrayDelete:
		if !exists || current.Kind() != KindArray {
			return Value{}, false
		}
		items := current.Items()
		i, ok := e.Value.Integer()
		if !ok || i < 0 || i >= int64(len(items)) {
			return Value{}, false
		}
		return Array(slices.Delete(slices.Clone(items), int(i), int(i)+1)...), true
	case OpArraySplice:
		if !exists || current.Kind() != KindArray {
			return Value{}, false
		}
		items := current.Items()
		start, count, ok := spliceBounds(e.Value, len(items))
		if !ok {
			return Value{}, false
		}
		return Array(slices.Delete(slices.Clone(items), start, start+count)...), true
	default:
		return Value{}, false
	}
}

// step implements increment and decrement. Integers stay integers unless the
// result overflows or a float is involved.
func (e *EditOperation) step(current Value, exists bool) (Value, bool) {
	if !exists || !current.IsNumber() {
		return Value{}, false
	}
	delta := Int(1)
	if e.Value.IsDefined() {
		if !e.Value.IsNumber() {
			return Value{}, false
		}
		delta = e.Value
	}
	sign := int64(1)
	if e.Operation == OpDecrement {
		sign = -1
	}
	if current.Kind() == KindInt && delta.Kind() == KindInt {
		a, _ := current.Integer()
		d, _ := delta.Integer()
		if d != math.MinInt64 {
			d *= sign
			if r := a + d; (d >= 0) == (r >= a) {
				return Int(r), true
			}
		}
	}
	return Float(current.FloatValue() + float64(sign)*delta.FloatValue()), true
}

// spliceBounds decodes a [start, count] operand against an array of length n.
func spliceBounds(v Value, n int) (int, int, bool) {
	if v.Kind() != KindArray || len(v.Items()) != 2 {
		return 0, 0, false
	}
	start, ok := v.Items()[0].Integer()
	if !ok || start < 0 || start >= int64(n) {
		return 0, 0, false
	}
	count, ok := v.Items()[1].Integer()
	if !ok || count < 0 {
		return 0, 0, false
	}
	count = min(count, int64(n)-start)
	return int(start), int(count), true
}

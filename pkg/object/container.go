package object

// --- Array ---

// ArrayLen returns the number of elements in an Array object, 0 otherwise.
func ArrayLen(o *Object) int {
	if o == nil || o.typ != Array {
		return 0
	}
	return len(o.payload.(arrayPayload).items)
}

// ArrayAppend adds v to the end of the array, retaining it.
func ArrayAppend(o *Object, v *Object) {
	if o == nil || o.typ != Array {
		return
	}
	p := o.payload.(arrayPayload)
	p.items = append(p.items, Retain(v))
	o.payload = p
}

// ArrayGet returns the element at index, or nil if out of range.
func ArrayGet(o *Object, index int) *Object {
	if o == nil || o.typ != Array || index < 0 {
		return nil
	}
	p := o.payload.(arrayPayload)
	if index >= len(p.items) {
		return nil
	}
	return p.items[index]
}

// ArraySet stores v at index, retaining it and releasing whatever was
// previously there. If index is beyond the current length, intervening
// positions are filled with Null objects.
func ArraySet(o *Object, index int, v *Object) {
	if o == nil || o.typ != Array || index < 0 {
		return
	}
	p := o.payload.(arrayPayload)

	for len(p.items) <= index {
		p.items = append(p.items, NewNull())
	}

	Release(p.items[index])
	p.items[index] = Retain(v)
	o.payload = p
}

// ArrayApplier is invoked per element; returning false stops iteration
// early.
type ArrayApplier func(index int, value *Object) bool

// Apply walks an Array in order, invoking fn per element until it returns
// false or the array is exhausted.
func Apply(o *Object, fn ArrayApplier) {
	if o == nil || o.typ != Array {
		return
	}
	p := o.payload.(arrayPayload)
	for i, v := range p.items {
		if !fn(i, v) {
			return
		}
	}
}

// ReverseApply walks an Array high index to low.
func ReverseApply(o *Object, fn ArrayApplier) {
	if o == nil || o.typ != Array {
		return
	}
	p := o.payload.(arrayPayload)
	for i := len(p.items) - 1; i >= 0; i-- {
		if !fn(i, p.items[i]) {
			return
		}
	}
}

// Comparator orders two objects; negative if a < b, 0 if equal, positive if
// a > b.
type Comparator func(a, b *Object) int

// Sort stably reorders an Array's elements using cmp; ties preserve
// insertion order.
func Sort(o *Object, cmp Comparator) {
	if o == nil || o.typ != Array {
		return
	}
	p := o.payload.(arrayPayload)
	stableSort(p.items, cmp)
}

func stableSort(items []*Object, cmp Comparator) {
	// Insertion sort: stable, and the arrays passed through call arguments
	// are small enough that O(n^2) never matters.
	for i := 1; i < len(items); i++ {
		j := i
		for j > 0 && cmp(items[j-1], items[j]) > 0 {
			items[j-1], items[j] = items[j], items[j-1]
			j--
		}
	}
}

// Slice returns a new Array referencing (retained) entries [start,
// start+length). length == -1 means "to end". Both bounds clamp to the
// array's size.
func Slice(o *Object, start, length int) *Object {
	if o == nil || o.typ != Array {
		return NewArray()
	}
	p := o.payload.(arrayPayload)
	n := len(p.items)

	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}

	end := n
	if length >= 0 {
		end = start + length
		if end > n {
			end = n
		}
	}

	return NewArray(p.items[start:end]...)
}

// --- Dictionary ---

// DictLen returns the number of entries in a Dictionary, 0 otherwise.
func DictLen(o *Object) int {
	if o == nil || o.typ != Dictionary {
		return 0
	}
	return len(o.payload.(dictPayload).keys)
}

// DictSet inserts or replaces key with v, retaining v and releasing any
// prior value. New keys are appended to the insertion-order list.
func DictSet(o *Object, key string, v *Object) {
	if o == nil || o.typ != Dictionary {
		return
	}
	p := o.payload.(dictPayload)

	if old, ok := p.vals[key]; ok {
		Release(old)
	} else {
		p.keys = append(p.keys, key)
	}
	p.vals[key] = Retain(v)
	o.payload = p
}

// DictGet returns the value stored at key, or nil if absent.
func DictGet(o *Object, key string) *Object {
	if o == nil || o.typ != Dictionary {
		return nil
	}
	p := o.payload.(dictPayload)
	return p.vals[key]
}

// DictDelete removes key, releasing its value. No-op if key is absent.
func DictDelete(o *Object, key string) {
	if o == nil || o.typ != Dictionary {
		return
	}
	p := o.payload.(dictPayload)

	v, ok := p.vals[key]
	if !ok {
		return
	}
	Release(v)
	delete(p.vals, key)

	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
	o.payload = p
}

// DictKeys returns the dictionary's keys in insertion order.
func DictKeys(o *Object) []string {
	if o == nil || o.typ != Dictionary {
		return nil
	}
	p := o.payload.(dictPayload)
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// DictApplier is invoked per entry, in insertion order; returning false
// stops iteration early.
type DictApplier func(key string, value *Object) bool

// DictApply walks a Dictionary in insertion order.
func DictApply(o *Object, fn DictApplier) {
	if o == nil || o.typ != Dictionary {
		return
	}
	p := o.payload.(dictPayload)
	for _, k := range p.keys {
		if !fn(k, p.vals[k]) {
			return
		}
	}
}

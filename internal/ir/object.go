package ir

import (
	"slices"
)

// Object is an insertion-ordered JSON object.
//
// Bundle documents keep their key order: grammar listings, lockable rule
// names and the variable inventory are reported in authored order, which a
// plain Go map cannot preserve.
type Object struct {
	keys []string
	vals map[string]any
}

// NewObject creates an empty Object.
func NewObject() *Object {
	return &Object{vals: make(map[string]any)}
}

// ObjectFromMap converts a plain map into an Object with keys in sorted
// order. Used for documents built in code, where no authored order exists.
func ObjectFromMap(m map[string]any) *Object {
	obj := NewObject()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		obj.Set(k, m[k])
	}
	return obj
}

// Set stores v under key. A new key is appended; an existing key keeps
// its position.
func (o *Object) Set(key string, v any) {
	if _, exists := o.vals[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.vals[key]
	return v, ok
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Delete removes key, preserving the order of the remaining keys.
func (o *Object) Delete(key string) {
	if _, ok := o.vals[key]; !ok {
		return
	}
	delete(o.vals, key)
	o.keys = slices.DeleteFunc(o.keys, func(k string) bool { return k == key })
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return slices.Clone(o.keys)
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// AsObject views a decoded document node as an Object.
// Accepts *Object and map[string]any (sorted keys).
func AsObject(v any) (*Object, bool) {
	switch val := v.(type) {
	case *Object:
		return val, val != nil
	case map[string]any:
		return ObjectFromMap(val), true
	default:
		return nil, false
	}
}

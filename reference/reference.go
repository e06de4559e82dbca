package reference

import (
	"sort"
	"sync"
)

// ---------------------------------------------------------------------------
// Reference interfaces
// ---------------------------------------------------------------------------

// Reference is a pull-based handle over a host value. Value may recompute
// on every call; Tag reports when a recomputation could give a different
// answer.
type Reference interface {
	Value() any
	Tag() Tag
}

// PathReference is a Reference that can derive references to properties
// of its value.
type PathReference interface {
	Reference
	Get(key string) (PathReference, error)
}

// GetPath follows keys from ref, stopping at the first error.
func GetPath(ref PathReference, keys []string) (PathReference, error) {
	var err error
	for _, k := range keys {
		if ref, err = ref.Get(k); err != nil {
			return nil, err
		}
	}
	return ref, nil
}

// ---------------------------------------------------------------------------
// ConstReference
// ---------------------------------------------------------------------------

// ConstReference wraps a value that never changes.
type ConstReference struct {
	value any
}

// Const returns a reference to a value that never changes.
func Const(v any) *ConstReference {
	return &ConstReference{value: v}
}

// UndefinedReference is the shared reference to Undefined.
var UndefinedReference PathReference = Const(Undefined)

func (r *ConstReference) Value() any { return r.value }
func (r *ConstReference) Tag() Tag   { return ConstTag }

// Get looks the property up once; the result is constant too.
func (r *ConstReference) Get(key string) (PathReference, error) {
	return Const(Lookup(r.value, key)), nil
}

// ---------------------------------------------------------------------------
// RootReference: a host-owned value replaced wholesale
// ---------------------------------------------------------------------------

// RootReference holds a host value. Update replaces it and invalidates
// every reference derived from it.
type RootReference struct {
	mu    sync.RWMutex
	value any
	tag   *DirtyableTag
}

// NewRoot creates a root reference over v.
func NewRoot(v any) *RootReference {
	return &RootReference{value: v, tag: NewDirtyableTag()}
}

// Value returns the current root value.
func (r *RootReference) Value() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

// Tag returns the root's tag.
func (r *RootReference) Tag() Tag { return r.tag }

// Get derives a property reference.
func (r *RootReference) Get(key string) (PathReference, error) {
	return NewProperty(r, key), nil
}

// Update replaces the root value.
func (r *RootReference) Update(v any) {
	r.mu.Lock()
	r.value = v
	r.mu.Unlock()
	r.tag.Dirty()
}

// ---------------------------------------------------------------------------
// PropertyReference
// ---------------------------------------------------------------------------

// PropertyReference reads one property of its parent's value on every pull.
type PropertyReference struct {
	parent PathReference
	key    string
}

// NewProperty derives the reference parent.key.
func NewProperty(parent PathReference, key string) *PropertyReference {
	return &PropertyReference{parent: parent, key: key}
}

func (r *PropertyReference) Value() any { return Lookup(r.parent.Value(), r.key) }
func (r *PropertyReference) Tag() Tag   { return r.parent.Tag() }

func (r *PropertyReference) Get(key string) (PathReference, error) {
	return NewProperty(r, key), nil
}

// ---------------------------------------------------------------------------
// MapReference: a root with one tag per key
// ---------------------------------------------------------------------------

// MapReference is a root over string-keyed state where each key is
// invalidated separately, so readers of one key are not disturbed by
// writes to another.
type MapReference struct {
	mu     sync.RWMutex
	values map[string]any
	tags   map[string]*DirtyableTag
	shape  *DirtyableTag
}

// NewMap creates a map reference seeded with values.
func NewMap(values map[string]any) *MapReference {
	m := &MapReference{
		values: make(map[string]any, len(values)),
		tags:   make(map[string]*DirtyableTag),
		shape:  NewDirtyableTag(),
	}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

// Set stores v under key and invalidates readers of key only.
func (m *MapReference) Set(key string, v any) {
	m.mu.Lock()
	_, existed := m.values[key]
	m.values[key] = v
	tag := m.keyTagLocked(key)
	m.mu.Unlock()

	tag.Dirty()
	if !existed {
		m.shape.Dirty()
	}
}

// Delete removes key.
func (m *MapReference) Delete(key string) {
	m.mu.Lock()
	_, existed := m.values[key]
	delete(m.values, key)
	tag := m.keyTagLocked(key)
	m.mu.Unlock()

	if existed {
		tag.Dirty()
		m.shape.Dirty()
	}
}

func (m *MapReference) keyTagLocked(key string) *DirtyableTag {
	t, ok := m.tags[key]
	if !ok {
		t = NewDirtyableTag()
		m.tags[key] = t
	}
	return t
}

func (m *MapReference) keyTag(key string) Tag {
	m.mu.RLock()
	t, ok := m.tags[key]
	m.mu.RUnlock()
	if ok {
		return t
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keyTagLocked(key)
}

func (m *MapReference) lookup(key string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.values[key]; ok {
		return v
	}
	return Undefined
}

// Value returns a copy of the current map.
func (m *MapReference) Value() any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Tag invalidates when any key or the key set changes.
func (m *MapReference) Tag() Tag {
	return CombineFunc(func() []Tag {
		m.mu.RLock()
		defer m.mu.RUnlock()
		keys := make([]string, 0, len(m.tags))
		for k := range m.tags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		tags := make([]Tag, 0, len(keys)+1)
		tags = append(tags, m.shape)
		for _, k := range keys {
			tags = append(tags, m.tags[k])
		}
		return tags
	})
}

// Get returns a reference to one key, tagged by that key alone.
func (m *MapReference) Get(key string) (PathReference, error) {
	return &mapKeyReference{m: m, key: key, tag: m.keyTag(key)}, nil
}

type mapKeyReference struct {
	m   *MapReference
	key string
	tag Tag
}

func (r *mapKeyReference) Value() any { return r.m.lookup(r.key) }
func (r *mapKeyReference) Tag() Tag   { return r.tag }

func (r *mapKeyReference) Get(key string) (PathReference, error) {
	return NewProperty(r, key), nil
}

// ---------------------------------------------------------------------------
// Computed references
// ---------------------------------------------------------------------------

// ComputedReference derives its value from other references. The compute
// function runs on every pull; tag must cover every input it reads.
type ComputedReference struct {
	tag     Tag
	compute func() any
}

// NewComputed builds a derived reference.
func NewComputed(tag Tag, compute func() any) *ComputedReference {
	return &ComputedReference{tag: tag, compute: compute}
}

func (r *ComputedReference) Value() any { return r.compute() }
func (r *ComputedReference) Tag() Tag   { return r.tag }

func (r *ComputedReference) Get(key string) (PathReference, error) {
	return NewProperty(r, key), nil
}

// Truthy returns a reference to the truthiness of ref.
func Truthy(ref Reference) PathReference {
	if IsConst(ref.Tag()) {
		return Const(ToBool(ref.Value()))
	}
	return NewComputed(ref.Tag(), func() any { return ToBool(ref.Value()) })
}

package reference

import (
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Revisions and tags
// ---------------------------------------------------------------------------

// Revision is a point on the global revision clock. Revisions only grow.
type Revision uint64

const (
	// Constant is the revision of values that can never change.
	Constant Revision = 0

	// Initial is the first revision handed out by the clock.
	Initial Revision = 1
)

var clock atomic.Uint64

func init() {
	clock.Store(uint64(Initial))
}

// Current returns the current value of the revision clock.
func Current() Revision {
	return Revision(clock.Load())
}

// advance moves the clock forward and returns the new revision.
func advance() Revision {
	return Revision(clock.Add(1))
}

// Tag tracks whether the values behind a reference may have changed.
// Value returns the latest revision at which the tag was invalidated;
// a snapshot taken from Value stays valid until the tag is dirtied.
type Tag interface {
	Value() Revision
	Validate(snapshot Revision) bool
}

type constTag struct{}

func (constTag) Value() Revision {
	return Constant
}

func (constTag) Validate(snapshot Revision) bool {
	return true
}

// ConstTag is the tag of values that never change.
var ConstTag Tag = constTag{}

// IsConst reports whether t can never invalidate.
func IsConst(t Tag) bool {
	_, ok := t.(constTag)
	return ok
}

// ---------------------------------------------------------------------------
// DirtyableTag: invalidated explicitly by the owner of a value
// ---------------------------------------------------------------------------

// DirtyableTag is a tag whose owner calls Dirty whenever the underlying
// value changes. It is safe for concurrent use.
type DirtyableTag struct {
	revision atomic.Uint64
}

// NewDirtyableTag creates a tag valid as of the current revision.
func NewDirtyableTag() *DirtyableTag {
	t := &DirtyableTag{}
	t.revision.Store(uint64(Current()))
	return t
}

// Value returns the revision at which the tag was last dirtied.
func (t *DirtyableTag) Value() Revision {
	return Revision(t.revision.Load())
}

// Validate reports whether the tag is unchanged since snapshot.
func (t *DirtyableTag) Validate(snapshot Revision) bool {
	return t.Value() <= snapshot
}

// Dirty invalidates every snapshot taken so far.
func (t *DirtyableTag) Dirty() {
	t.revision.Store(uint64(advance()))
}

// ---------------------------------------------------------------------------
// Combined tags
// ---------------------------------------------------------------------------

// cachedTag memoizes compute() for as long as the global clock has not
// moved. Nothing can be invalidated without advancing the clock.
type cachedTag struct {
	compute     func() Revision
	lastChecked Revision
	lastValue   Revision
}

func (t *cachedTag) Value() Revision {
	now := Current()
	if t.lastChecked != now {
		t.lastValue = t.compute()
		t.lastChecked = now
	}
	return t.lastValue
}

func (t *cachedTag) Validate(snapshot Revision) bool {
	return t.Value() <= snapshot
}

// Combine returns a tag that is invalid whenever any of tags is.
// Constant tags are dropped; combining nothing yields ConstTag.
func Combine(tags ...Tag) Tag {
	live := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if t == nil || IsConst(t) {
			continue
		}
		live = append(live, t)
	}

	switch len(live) {
	case 0:
		return ConstTag
	case 1:
		return live[0]
	}

	ct := &cachedTag{}
	ct.compute = func() Revision {
		var max Revision
		for _, t := range live {
			if v := t.Value(); v > max {
				max = v
			}
		}
		return max
	}
	return ct
}

// CombineFunc returns a cached tag over a set of tags that may change
// between calls. list is called at most once per clock revision.
func CombineFunc(list func() []Tag) Tag {
	ct := &cachedTag{}
	ct.compute = func() Revision {
		var max Revision
		for _, t := range list() {
			if t == nil {
				continue
			}
			if v := t.Value(); v > max {
				max = v
			}
		}
		return max
	}
	return ct
}

// ---------------------------------------------------------------------------
// UpdatableTag: a tag whose inner tag can be swapped
// ---------------------------------------------------------------------------

// UpdatableTag forwards to an inner tag that can be replaced. Replacing the
// inner tag invalidates the UpdatableTag itself.
type UpdatableTag struct {
	inner   Tag
	swapped Revision
}

// NewUpdatableTag wraps inner.
func NewUpdatableTag(inner Tag) *UpdatableTag {
	if inner == nil {
		inner = ConstTag
	}
	return &UpdatableTag{inner: inner}
}

// Update replaces the inner tag.
func (t *UpdatableTag) Update(inner Tag) {
	if inner == nil {
		inner = ConstTag
	}
	t.inner = inner
	t.swapped = advance()
}

// Value returns the newer of the inner tag's revision and the last swap.
func (t *UpdatableTag) Value() Revision {
	v := t.inner.Value()
	if t.swapped > v {
		return t.swapped
	}
	return v
}

// Validate reports whether neither the inner tag nor the wrapper changed.
func (t *UpdatableTag) Validate(snapshot Revision) bool {
	return t.Value() <= snapshot
}

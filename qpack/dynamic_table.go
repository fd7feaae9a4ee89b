package qpack

import "math"

// noEvictionBound disables eviction protection: every entry may be
// evicted. The decoder mirror always inserts with this bound, since
// the encoder is responsible for never evicting an entry a pending
// header block still needs.
const noEvictionBound = math.MaxUint64

type dynamicEntry struct {
	field HeaderField
	// Absolute index, 1-based: the value of insertCount when the
	// entry was added. Never reused, even after eviction.
	absIndex uint64
}

// dynamicTable is the mutable half of the indexing space. Entries are
// kept oldest first; eviction always removes from the front.
type dynamicTable struct {
	entries []dynamicEntry

	capacity    uint64
	maxCapacity uint64
	used        uint64

	insertCount  uint64
	droppedCount uint64
}

func newDynamicTable(maxCapacity uint64) *dynamicTable {
	return &dynamicTable{maxCapacity: maxCapacity}
}

// maxEntries bounds the number of simultaneously live entries and
// parameterizes the Required Insert Count wrapping in the header block
// prefix (RFC 9204, Section 4.5.1.1).
func (t *dynamicTable) maxEntries() uint64 {
	return t.maxCapacity / entrySizeOverhead
}

// setCapacity shrinks or grows the table's byte budget, evicting from
// the front as needed. Growing past the connection-negotiated maximum
// is a protocol violation.
func (t *dynamicTable) setCapacity(capacity uint64) error {
	if capacity > t.maxCapacity {
		return ErrCapacityTooLarge
	}
	t.capacity = capacity
	t.evictTo(capacity, noEvictionBound)
	return nil
}

// evictTo drops front entries until used size is within target.
// Entries with absolute index >= bound are not evictable; hitting one
// stops eviction early and the caller decides whether that is fatal.
func (t *dynamicTable) evictTo(target, bound uint64) {
	for t.used > target && len(t.entries) > 0 {
		front := t.entries[0]
		if front.absIndex >= bound {
			return
		}
		t.entries = t.entries[1:]
		t.used -= front.field.Size()
		t.droppedCount++
	}
}

// insert appends a new entry, evicting as needed, and returns its
// absolute index. Entries with absolute index >= evictionBound are
// protected from eviction; if protected entries stand in the way the
// insertion fails with errTableFull.
func (t *dynamicTable) insert(f HeaderField, evictionBound uint64) (uint64, error) {
	size := f.Size()
	if size > t.capacity {
		return 0, ErrEntryTooLarge
	}
	t.evictTo(t.capacity-size, evictionBound)
	if t.used+size > t.capacity {
		return 0, errTableFull
	}
	t.insertCount++
	t.entries = append(t.entries, dynamicEntry{field: f, absIndex: t.insertCount})
	t.used += size
	return t.insertCount, nil
}

// duplicate re-inserts a live entry under a new absolute index,
// refreshing its recency without resending its content.
func (t *dynamicTable) duplicate(absIndex, evictionBound uint64) (uint64, error) {
	f, err := t.lookupAbsolute(absIndex)
	if err != nil {
		return 0, err
	}
	return t.insert(f, evictionBound)
}

// lookupAbsolute resolves a 1-based absolute index. An index is valid
// iff droppedCount < index <= insertCount.
func (t *dynamicTable) lookupAbsolute(index uint64) (HeaderField, error) {
	if index <= t.droppedCount || index > t.insertCount {
		return HeaderField{}, ErrDynamicEntryNotFound
	}
	return t.entries[index-t.droppedCount-1].field, nil
}

// findExact returns the absolute index of the newest entry matching
// both name and value.
func (t *dynamicTable) findExact(name, value string) (uint64, bool) {
	for i := len(t.entries) - 1; i >= 0; i-- {
		e := t.entries[i]
		if e.field.Name == name && e.field.Value == value {
			return e.absIndex, true
		}
	}
	return 0, false
}

// findName returns the absolute index of the newest entry matching
// name only.
func (t *dynamicTable) findName(name string) (uint64, bool) {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].field.Name == name {
			return t.entries[i].absIndex, true
		}
	}
	return 0, false
}

// draining reports whether an entry would be evicted if the table had
// to shrink to three quarters of its capacity. Such entries are close
// to eviction, so the encoder duplicates them instead of referencing
// them directly.
func (t *dynamicTable) draining(absIndex uint64) bool {
	keep := t.capacity - t.capacity/4
	if t.used <= keep {
		return false
	}
	excess := t.used - keep
	var fromFront uint64
	for _, e := range t.entries {
		if fromFront >= excess {
			return false
		}
		if e.absIndex == absIndex {
			return true
		}
		fromFront += e.field.Size()
	}
	return false
}

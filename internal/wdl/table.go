package wdl

import "sort"

// Table counts occurrences of each Key.
type Table map[Key]uint64

// Entry is a single key/count pair.
type Entry struct {
	Key   Key
	Count uint64
}

// NewTable returns an empty table.
func NewTable() Table {
	return make(Table)
}

// Add increments the count for k.
func (t Table) Add(k Key) {
	t[k]++
}

// Merge adds every count of other into t.
func (t Table) Merge(other Table) {
	for k, n := range other {
		t[k] += n
	}
}

// Total returns the sum of all counts.
func (t Table) Total() uint64 {
	var total uint64
	for _, n := range t {
		total += n
	}
	return total
}

// Sorted returns the entries ordered by descending count.
// Equal counts are ordered by key.
func (t Table) Sorted() []Entry {
	entries := make([]Entry, 0, len(t))
	for k, n := range t {
		entries = append(entries, Entry{Key: k, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key.Less(entries[j].Key)
	})
	return entries
}

// Merge reduces tables into a new table by key-wise summation.
// The inputs are not modified and their order does not matter.
func Merge(tables ...Table) Table {
	size := 0
	for _, t := range tables {
		size = max(size, len(t))
	}
	out := make(Table, size)
	for _, t := range tables {
		out.Merge(t)
	}
	return out
}

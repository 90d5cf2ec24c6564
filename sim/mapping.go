package sim

import (
	"fmt"
	"strings"
)

// Mapping identifies one valid (worker, page) -> frame binding.
type Mapping struct {
	Worker int
	Page   int
	Frame  int
}

func (m Mapping) String() string {
	return fmt.Sprintf("(%d | %d | %d)", m.Worker, m.Page, m.Frame)
}

// MappingList is an ordered collection of mappings.
// The allocator keeps two of them: the reference list (every mapped triple,
// in mapping order) and the LRU list (least recently touched at the head).
type MappingList struct {
	items []Mapping
}

// Append adds m at the tail.
func (l *MappingList) Append(m Mapping) {
	l.items = append(l.items, m)
}

// Remove deletes the first element equal to m and reports whether one was found.
func (l *MappingList) Remove(m Mapping) bool {
	i := l.indexOf(m)
	if i < 0 {
		return false
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	return true
}

// Contains reports whether m is in the list.
func (l *MappingList) Contains(m Mapping) bool {
	return l.indexOf(m) >= 0
}

// Touch moves m to the tail, appending it if absent.
func (l *MappingList) Touch(m Mapping) {
	l.Remove(m)
	l.Append(m)
}

// Head returns the oldest element. ok is false when the list is empty.
func (l *MappingList) Head() (m Mapping, ok bool) {
	if len(l.items) == 0 {
		return Mapping{}, false
	}
	return l.items[0], true
}

// Len returns the number of elements.
func (l *MappingList) Len() int {
	return len(l.items)
}

// Items returns the list contents, head first.
// Callers MUST NOT modify the returned slice.
func (l *MappingList) Items() []Mapping {
	return l.items
}

func (l *MappingList) indexOf(m Mapping) int {
	for i, it := range l.items {
		if it == m {
			return i
		}
	}
	return -1
}

func (l *MappingList) String() string {
	var sb strings.Builder
	sb.WriteString("List:")
	for i, m := range l.items {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(" ")
		sb.WriteString(m.String())
	}
	return sb.String()
}

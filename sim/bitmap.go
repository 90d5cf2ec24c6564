package sim

import (
	"fmt"
	"math/bits"
)

// FrameBitmap tracks frame occupancy, one bit per frame.
type FrameBitmap struct {
	size  int
	words []uint64
}

// NewFrameBitmap returns a bitmap of size clear bits.
func NewFrameBitmap(size int) *FrameBitmap {
	if size <= 0 {
		panic(fmt.Sprintf("NewFrameBitmap: size must be positive, got %d", size))
	}
	return &FrameBitmap{size: size, words: make([]uint64, (size+63)/64)}
}

// Size returns the number of frames tracked.
func (b *FrameBitmap) Size() int { return b.size }

func (b *FrameBitmap) check(frame int) {
	if frame < 0 || frame >= b.size {
		panic(fmt.Sprintf("FrameBitmap: frame %d out of range [0, %d)", frame, b.size))
	}
}

// Get reports whether frame is occupied.
func (b *FrameBitmap) Get(frame int) bool {
	b.check(frame)
	return b.words[frame/64]&(1<<(uint(frame)%64)) != 0
}

// Set marks frame occupied.
func (b *FrameBitmap) Set(frame int) {
	b.check(frame)
	b.words[frame/64] |= 1 << (uint(frame) % 64)
}

// Clear marks frame free.
func (b *FrameBitmap) Clear(frame int) {
	b.check(frame)
	b.words[frame/64] &^= 1 << (uint(frame) % 64)
}

// Count returns the number of occupied frames.
func (b *FrameBitmap) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// FindFirstClear returns the first free frame at or after start, wrapping
// around once. ok is false when every frame is occupied.
func (b *FrameBitmap) FindFirstClear(start int) (frame int, ok bool) {
	b.check(start)
	for i := 0; i < b.size; i++ {
		f := (start + i) % b.size
		if b.words[f/64]&(1<<(uint(f)%64)) == 0 {
			return f, true
		}
	}
	return 0, false
}

package buf

// Buffer is a growable byte queue: bytes are appended at the tail by reads
// and consumed from the head by the decoder.
type Buffer struct {
	v     []byte
	start int
	end   int
}

func New() *Buffer {
	return &Buffer{v: Alloc(MinSize)}
}

func (b *Buffer) Len() int {
	return b.end - b.start
}

func (b *Buffer) Cap() int {
	return len(b.v)
}

func (b *Buffer) IsEmpty() bool {
	return b.start == b.end
}

// Bytes returns the unconsumed bytes. Valid until the next mutating call.
func (b *Buffer) Bytes() []byte {
	return b.v[b.start:b.end]
}

// Reserve makes sure at least n bytes are free at the tail. Consumed head
// space is reclaimed first; if that is not enough the capacity doubles
// (never below MinSize) until n bytes fit.
func (b *Buffer) Reserve(n int) {
	if len(b.v)-b.end >= n {
		return
	}
	if b.start > 0 {
		copy(b.v, b.v[b.start:b.end])
		b.end -= b.start
		b.start = 0
		if len(b.v)-b.end >= n {
			return
		}
	}

	size := len(b.v) * 2
	if size < MinSize {
		size = MinSize
	}
	for size-b.end < n {
		size *= 2
	}
	v := Alloc(size)
	copy(v, b.v[:b.end])
	if b.v != nil {
		Free(b.v)
	}
	b.v = v
}

// Tail is the free space after the unconsumed bytes.
func (b *Buffer) Tail() []byte {
	return b.v[b.end:]
}

// Extend marks n bytes of Tail as written.
func (b *Buffer) Extend(n int) {
	b.end += n
}

// Advance drops n bytes from the head.
func (b *Buffer) Advance(n int) {
	b.start += n
	if b.start >= b.end {
		b.start, b.end = 0, 0
	}
}

func (b *Buffer) Clear() {
	b.start, b.end = 0, 0
}

// Release returns the backing array to the pool. The buffer must not be
// used afterwards.
func (b *Buffer) Release() {
	if b.v != nil {
		Free(b.v)
	}
	b.v = nil
	b.start, b.end = 0, 0
}

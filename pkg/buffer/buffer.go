// Package buffer provides an owned, resizable byte container used to
// accumulate request bodies and streamed response data.
package buffer

// growthFactor is applied to the required capacity when Append must
// reallocate, so repeated small appends don't reallocate every call.
const growthFactor = 1.5

// Buffer is an owned byte container. The zero value is a valid empty
// buffer. Buffer is not safe for concurrent use; callers that share a
// Buffer across goroutines must synchronize externally.
type Buffer struct {
	data []byte
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// NewWithCapacity returns an empty buffer with the given capacity
// pre-allocated.
func NewWithCapacity(capacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, capacity)}
}

// NewFromBytes returns a buffer holding a deep copy of b.
func NewFromBytes(b []byte) *Buffer {
	buf := &Buffer{data: make([]byte, len(b))}
	copy(buf.data, b)
	return buf
}

// Len returns the logical length of the buffer.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Empty reports whether the buffer holds no data.
func (b *Buffer) Empty() bool {
	return len(b.data) == 0
}

// View returns a non-owning borrow of the logical-length prefix. The
// caller must not retain it past the next mutating call on b.
func (b *Buffer) View() []byte {
	return b.data
}

// Clone returns a deep copy of b.
func (b *Buffer) Clone() *Buffer {
	return NewFromBytes(b.data)
}

// Append concatenates other's contents onto b, growing capacity to
// ~1.5x the required size if the current capacity is insufficient.
func (b *Buffer) Append(other *Buffer) {
	b.AppendBytes(other.data)
}

// AppendBytes concatenates p onto b with the same growth discipline as
// Append.
func (b *Buffer) AppendBytes(p []byte) {
	required := len(b.data) + len(p)
	if cap(b.data) < required {
		grown := int(float64(required) * growthFactor)
		next := make([]byte, len(b.data), grown)
		copy(next, b.data)
		b.data = next
	}
	b.data = append(b.data, p...)
}

// Copy returns a new buffer holding the subrange [offset, offset+length),
// clamped to the available content. Returns an empty buffer if
// offset >= length of the buffer, or if length == 0.
func (b *Buffer) Copy(offset, length int) *Buffer {
	total := len(b.data)
	if length == 0 || offset >= total {
		return New()
	}
	end := offset + length
	if end > total {
		end = total
	}
	return NewFromBytes(b.data[offset:end])
}

// Detach transfers ownership of the underlying storage to the returned
// buffer, leaving b empty.
func (b *Buffer) Detach() *Buffer {
	out := &Buffer{data: b.data}
	b.data = nil
	return out
}

// Resize truncates or grows the buffer to n bytes, preserving the
// existing prefix and zero-filling any newly added bytes.
func (b *Buffer) Resize(n int) {
	if n <= len(b.data) {
		b.data = b.data[:n]
		return
	}
	grown := make([]byte, n)
	copy(grown, b.data)
	b.data = grown
}

// ResetData zero-fills the existing storage and sets the logical
// length to 0, without releasing capacity.
func (b *Buffer) ResetData() {
	for i := range b.data {
		b.data[i] = 0
	}
	b.data = b.data[:0]
}

// Destroy releases the buffer's storage.
func (b *Buffer) Destroy() {
	b.data = nil
}

// Equal compares length then byte-wise content.
func (b *Buffer) Equal(other *Buffer) bool {
	if len(b.data) != len(other.data) {
		return false
	}
	for i := range b.data {
		if b.data[i] != other.data[i] {
			return false
		}
	}
	return true
}

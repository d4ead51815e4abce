package audioring

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// each stored frame is prefixed by its encoded length
const sizePrefix = 4

var ErrFrameTooLarge = errors.New("audioring: frame too large for buffer")

type rb_impl struct {
	mu      sync.Mutex
	size    int
	frames  int
	dropped uint64
	rb      *ringbuffer.RingBuffer
}

// New returns a ring holding at most size bytes of encoded frames.
func New(size int) AudioRingBuffer {
	return &rb_impl{
		size: size,
		rb:   ringbuffer.New(size).SetBlocking(false),
	}
}

// Capacity implements AudioRingBuffer.
func (r *rb_impl) Capacity() int {
	return r.size
}

// Len implements AudioRingBuffer. It counts frames, not bytes.
func (r *rb_impl) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Dropped implements AudioRingBuffer.
func (r *rb_impl) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Reset implements AudioRingBuffer.
func (r *rb_impl) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rb.Reset()
	r.frames = 0
}

// Enqueue implements AudioRingBuffer.
func (r *rb_impl) Enqueue(audioSlice AudioInput) error {
	data, err := audioSlice.MarshalBinary()
	if err != nil {
		return err
	}
	record := make([]byte, sizePrefix+len(data))
	binary.LittleEndian.PutUint32(record, uint32(len(data)))
	copy(record[sizePrefix:], data)

	if len(record) > r.rb.Capacity() {
		return ErrFrameTooLarge
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for r.rb.Free() < len(record) {
		if _, ok := r.pop(); !ok {
			// prefix stream is out of sync, start over
			r.rb.Reset()
			r.frames = 0
			break
		}
		r.dropped++
	}

	if _, err := r.rb.Write(record); err != nil {
		return err
	}
	r.frames++
	return nil
}

// Dequeue implements AudioRingBuffer.
func (r *rb_impl) Dequeue() (AudioInput, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pop()
}

// Drain implements AudioRingBuffer.
func (r *rb_impl) Drain(max int) []AudioInput {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]AudioInput, 0, r.frames)
	for max <= 0 || len(out) < max {
		frame, ok := r.pop()
		if !ok {
			break
		}
		out = append(out, frame)
	}
	return out
}

// pop reads one frame; r.mu must be held.
func (r *rb_impl) pop() (AudioInput, bool) {
	if r.rb.IsEmpty() {
		return AudioInput{}, false
	}

	prefix := make([]byte, sizePrefix)
	if n, err := r.rb.Read(prefix); err != nil || n != sizePrefix {
		return AudioInput{}, false
	}
	size := int(binary.LittleEndian.Uint32(prefix))

	data := make([]byte, size)
	if n, err := r.rb.Read(data); err != nil || n != size {
		return AudioInput{}, false
	}
	r.frames--

	var frame AudioInput
	if err := frame.UnmarshalBinary(data); err != nil {
		return AudioInput{}, false
	}
	return frame, true
}

package audioring

import (
	"encoding/binary"
	"errors"
	"time"
)

// frame header: timestamp(8) + sampleRate(4) + channels(2) + dataLen(4)
const frameHeaderSize = 18

var ErrShortFrame = errors.New("audioring: encoded frame shorter than header")

// AudioInput is one chunk of 16-bit little endian PCM captured from a client.
type AudioInput struct {
	Data       []byte
	Timestamp  time.Time
	SampleRate int32
	Channels   int16
}

// Samples returns the number of 16-bit samples carried by the frame.
func (a AudioInput) Samples() int {
	return len(a.Data) / 2
}

func (a *AudioInput) MarshalBinary() ([]byte, error) {
	buf := make([]byte, frameHeaderSize+len(a.Data))
	binary.LittleEndian.PutUint64(buf[0:], uint64(a.Timestamp.UnixNano()))
	binary.LittleEndian.PutUint32(buf[8:], uint32(a.SampleRate))
	binary.LittleEndian.PutUint16(buf[12:], uint16(a.Channels))
	binary.LittleEndian.PutUint32(buf[14:], uint32(len(a.Data)))
	copy(buf[frameHeaderSize:], a.Data)
	return buf, nil
}

func (a *AudioInput) UnmarshalBinary(data []byte) error {
	if len(data) < frameHeaderSize {
		return ErrShortFrame
	}
	a.Timestamp = time.Unix(0, int64(binary.LittleEndian.Uint64(data[0:])))
	a.SampleRate = int32(binary.LittleEndian.Uint32(data[8:]))
	a.Channels = int16(binary.LittleEndian.Uint16(data[12:]))
	dataLen := int(binary.LittleEndian.Uint32(data[14:]))
	if len(data[frameHeaderSize:]) < dataLen {
		return ErrShortFrame
	}
	a.Data = make([]byte, dataLen)
	copy(a.Data, data[frameHeaderSize:frameHeaderSize+dataLen])
	return nil
}

// AudioRingBuffer is a bounded FIFO of frames. When full, the oldest frames
// are evicted to make room for new ones.
type AudioRingBuffer interface {
	Enqueue(audioSlice AudioInput) error
	Dequeue() (AudioInput, bool)
	// Drain removes up to max frames (all frames when max <= 0).
	Drain(max int) []AudioInput
	Len() int
	Capacity() int
	Dropped() uint64
	Reset()
}

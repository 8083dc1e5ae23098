package capture

import (
	"bytes"
	"sync"

	"bhasha/internal/services"
)

// ChunkBuffer accumulates recording fragments in arrival order. It is
// append-only until Finalize, after which the concatenated artifact is
// immutable and further appends fail.
type ChunkBuffer struct {
	mu        sync.Mutex
	fragments [][]byte
	size      int64
	finalized bool
}

// Artifact is the finalized product of a recording session. Data is the
// ordered concatenation of every fragment; DurationSeconds is the session's
// elapsed counter, not a value derived from fragment count.
type Artifact struct {
	Data            []byte
	Fragments       int
	DurationSeconds int
	ContentType     string
}

// NewChunkBuffer returns an empty buffer.
func NewChunkBuffer() *ChunkBuffer {
	return &ChunkBuffer{}
}

// Append adds a fragment. Empty fragments are ignored. Appending after
// Finalize fails.
func (b *ChunkBuffer) Append(fragment []byte) error {
	if len(fragment) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return services.Wrap(services.ErrInvalidInput, "capture", "append", "buffer already finalized", nil)
	}
	copied := make([]byte, len(fragment))
	copy(copied, fragment)
	b.fragments = append(b.fragments, copied)
	b.size += int64(len(copied))
	return nil
}

// Len reports the number of buffered fragments.
func (b *ChunkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.fragments)
}

// Size reports the total buffered bytes.
func (b *ChunkBuffer) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Finalize seals the buffer and returns the concatenated artifact. Calling
// it again returns the same artifact.
func (b *ChunkBuffer) Finalize(durationSeconds int, contentType string) *Artifact {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finalized = true

	var joined bytes.Buffer
	joined.Grow(int(b.size))
	for _, fragment := range b.fragments {
		joined.Write(fragment)
	}
	return &Artifact{
		Data:            joined.Bytes(),
		Fragments:       len(b.fragments),
		DurationSeconds: durationSeconds,
		ContentType:     contentType,
	}
}

// Reset drops all buffered fragments and reopens the buffer.
func (b *ChunkBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fragments = nil
	b.size = 0
	b.finalized = false
}

package binary

import (
	"sync"
	"time"

	. "github.com/MihneaTeodorStoica/Minerva/internal/helpers"
)

// LineBuffer is the channel between the reader goroutines and whoever is
// waiting on engine output. Lines come out in the exact order the process
// emitted them.
type LineBuffer struct {
	lock    sync.Mutex
	lines   []string
	updated chan struct{}

	noCopy NoCopy
}

func NewLineBuffer() *LineBuffer {
	return &LineBuffer{updated: make(chan struct{}, 1)}
}

func (b *LineBuffer) Push(line string) {
	b.lock.Lock()
	b.lines = append(b.lines, line)
	b.lock.Unlock()

	select {
	case b.updated <- struct{}{}:
	default:
	}
}

func (b *LineBuffer) pop() Optional[string] {
	b.lock.Lock()
	defer b.lock.Unlock()

	if len(b.lines) == 0 {
		return Empty[string]()
	}
	line := b.lines[0]
	b.lines = b.lines[1:]
	return Some(line)
}

// Next pops the oldest undelivered line, waiting up to timeout for one to
// arrive. Empty result means the wait expired.
func (b *LineBuffer) Next(timeout time.Duration) Optional[string] {
	if line := b.pop(); line.HasValue() {
		return line
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-b.updated:
			if line := b.pop(); line.HasValue() {
				return line
			}
		case <-deadline.C:
			return b.pop()
		}
	}
}

// Drain discards everything currently queued without blocking and returns
// the discarded lines for logging.
func (b *LineBuffer) Drain() []string {
	b.lock.Lock()
	defer b.lock.Unlock()

	drained := b.lines
	b.lines = nil
	return drained
}

func (b *LineBuffer) Len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.lines)
}

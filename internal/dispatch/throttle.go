package dispatch

import (
	"io"
	"sync"
	"time"
)

// syncWriter is what ThrottledWriter wraps: a writable target that can be
// flushed to stable storage. *os.File satisfies it.
type syncWriter interface {
	io.WriteCloser
	Sync() error
}

// ThrottledWriter limits write speed to spare the device and the rest of
// the system during long passes (thread-safe).
type ThrottledWriter struct {
	target       syncWriter
	maxSpeedMBps float64
	lastWrite    time.Time
	mu           sync.Mutex
	closed       bool
}

// NewThrottledWriter wraps target. maxSpeedMBps <= 0 disables throttling.
func NewThrottledWriter(target syncWriter, maxSpeedMBps float64) *ThrottledWriter {
	return &ThrottledWriter{
		target:       target,
		maxSpeedMBps: maxSpeedMBps,
		lastWrite:    time.Now(),
	}
}

// Write writes data, sleeping as needed to honor the speed cap.
func (tw *ThrottledWriter) Write(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}

	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return 0, io.ErrClosedPipe
	}

	if tw.maxSpeedMBps > 0 {
		bytesPerSec := tw.maxSpeedMBps * 1024 * 1024
		expected := time.Duration(float64(len(data)) / bytesPerSec * float64(time.Second))
		actual := time.Since(tw.lastWrite)
		if actual < expected {
			time.Sleep(expected - actual)
		}
	}

	n, err := tw.target.Write(data)
	tw.lastWrite = time.Now()
	return n, err
}

// Sync flushes written data to stable storage.
func (tw *ThrottledWriter) Sync() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return io.ErrClosedPipe
	}
	return tw.target.Sync()
}

// Close closes the underlying target. Idempotent.
func (tw *ThrottledWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return nil
	}
	tw.closed = true
	return tw.target.Close()
}

package dispatch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/device"
)

// FileExecutor overwrites a target by writing pattern data directly to
// its path in chunks. It implements the software methods (zeros, ones,
// random); hardware secure-erase must come from a platform-specific
// Executor binding.
type FileExecutor struct {
	logger       zerolog.Logger
	chunkSize    int64
	maxSpeedMBps float64
	// syncInterval bounds how much unsynced data may sit in the page
	// cache; a cancelled pass must still have its byte count on stable
	// storage.
	syncInterval uint64
}

// NewFileExecutor builds a FileExecutor.
func NewFileExecutor(logger zerolog.Logger, chunkSize int64, maxSpeedMBps float64) *FileExecutor {
	if chunkSize <= 0 {
		chunkSize = 4 * 1024 * 1024
	}
	return &FileExecutor{
		logger:       logger.With().Str("component", "file-executor").Logger(),
		chunkSize:    chunkSize,
		maxSpeedMBps: maxSpeedMBps,
		syncInterval: 512 * 1024 * 1024,
	}
}

// Execute writes the pass pattern across the device extent. Cancellation
// is checked before every chunk, so latency is bounded by one chunk
// write. A cancelled pass returns PARTIAL with the byte offset reached.
func (fe *FileExecutor) Execute(ctx context.Context, spec PassSpec, dev device.Device, progress ProgressFunc) PassResult {
	result := PassResult{
		Index:     spec.Index,
		Method:    spec.Method,
		Pattern:   spec.Pattern,
		StartTime: time.Now().UTC(),
	}

	if spec.Pattern == PatternSecureErase {
		result.Outcome = OutcomeFailed
		result.Error = "secure-erase requires a hardware executor binding"
		result.EndTime = time.Now().UTC()
		return result
	}

	f, err := os.OpenFile(dev.Path, os.O_WRONLY, 0)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Error = fmt.Sprintf("failed to open target: %v", err)
		result.EndTime = time.Now().UTC()
		return result
	}

	writer := NewThrottledWriter(f, fe.maxSpeedMBps)
	defer func() {
		if closeErr := writer.Close(); closeErr != nil {
			fe.logger.Warn().Err(closeErr).Str("device", dev.Path).Msg("error closing target")
		}
	}()

	total := dev.SizeBytes()
	buf := GetBuffer(int(fe.chunkSize))
	defer PutBuffer(buf)

	var written, lastSync uint64
	for written < total {
		select {
		case <-ctx.Done():
			result.BytesWritten = written
			result.EndTime = time.Now().UTC()
			if syncErr := writer.Sync(); syncErr != nil {
				fe.logger.Warn().Err(syncErr).Str("device", dev.Path).Msg("sync after interrupt failed")
			}
			if ctx.Err() == context.DeadlineExceeded {
				result.Outcome = OutcomeFailed
				result.Error = "pass timeout exceeded"
			} else {
				result.Outcome = OutcomePartial
				result.Error = "pass cancelled"
			}
			return result
		default:
		}

		chunk := buf
		if remaining := total - written; remaining < uint64(len(buf)) {
			chunk = buf[:remaining]
		}

		if err := FillPattern(spec.Pattern, chunk); err != nil {
			result.BytesWritten = written
			result.Outcome = OutcomeFailed
			result.Error = err.Error()
			result.EndTime = time.Now().UTC()
			return result
		}

		off := 0
		for off < len(chunk) {
			n, err := writer.Write(chunk[off:])
			if n > 0 {
				off += n
				written += uint64(n)
			}
			if err != nil {
				result.BytesWritten = written
				result.Outcome = OutcomeFailed
				result.Error = fmt.Sprintf("write error at offset %d: %v", written, err)
				result.EndTime = time.Now().UTC()
				return result
			}
			if n == 0 {
				result.BytesWritten = written
				result.Outcome = OutcomeFailed
				result.Error = "write returned 0 bytes without error"
				result.EndTime = time.Now().UTC()
				return result
			}
		}

		if fe.syncInterval > 0 && written-lastSync >= fe.syncInterval {
			if err := writer.Sync(); err != nil {
				result.BytesWritten = written
				result.Outcome = OutcomeFailed
				result.Error = fmt.Sprintf("sync error: %v", err)
				result.EndTime = time.Now().UTC()
				return result
			}
			lastSync = written
		}

		if progress != nil {
			progress(PassProgress{PassIndex: spec.Index, BytesWritten: written, TotalBytes: total})
		}
	}

	if err := writer.Sync(); err != nil {
		result.BytesWritten = written
		result.Outcome = OutcomeFailed
		result.Error = fmt.Sprintf("final sync error: %v", err)
		result.EndTime = time.Now().UTC()
		return result
	}

	result.BytesWritten = written
	result.Outcome = OutcomeSuccess
	result.EndTime = time.Now().UTC()
	return result
}

package trail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	defaultOutputDir    = "out"
	defaultFilename     = "trail.jsonl"
	defaultMaxBytes     = 5 << 20
	defaultBufferSize   = 32 << 10
	defaultMaxRotations = 3
)

// DefaultPath is the canonical location for persisted decode trails. The
// ODX_OUT environment variable relocates it.
var DefaultPath = filepath.Join(defaultOutputDir, defaultFilename)

func init() {
	if custom := strings.TrimSpace(os.Getenv("ODX_OUT")); custom != "" {
		DefaultPath = filepath.Join(custom, defaultFilename)
	}
}

// WriterOption configures the writer behaviour.
type WriterOption func(*Writer)

// WithMaxBytes overrides the rotation threshold. Values <= 0 disable
// rotation.
func WithMaxBytes(limit int64) WriterOption {
	return func(w *Writer) {
		w.maxBytes = limit
	}
}

// WithMaxRotations sets how many rotated files are retained. Values < 1 keep
// a single file without rotation history.
func WithMaxRotations(count int) WriterOption {
	return func(w *Writer) {
		if count < 1 {
			count = 1
		}
		w.maxFiles = count
	}
}

// Writer appends trail records to a JSON Lines file with size based
// rotation. It is safe for concurrent use.
type Writer struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	maxFiles int
	file     *os.File
	buf      *bufio.Writer
	written  int64
}

// NewWriter constructs a writer targeting the provided path, falling back to
// DefaultPath when path is blank.
func NewWriter(path string, opts ...WriterOption) *Writer {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	w := &Writer{path: path, maxBytes: defaultMaxBytes, maxFiles: defaultMaxRotations}
	for _, opt := range opts {
		opt(w)
	}
	if w.maxFiles < 1 {
		w.maxFiles = 1
	}
	return w
}

// Path returns the file path currently used by the writer.
func (w *Writer) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// Write validates and appends the record.
func (w *Writer) Write(r Record) error {
	if strings.TrimSpace(r.Version) == "" {
		r.Version = SchemaVersion
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid trail record: %w", err)
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode trail record: %w", err)
	}
	payload = append(payload, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensureWriter(); err != nil {
		return err
	}
	if err := w.rotateIfNeeded(int64(len(payload))); err != nil {
		return err
	}
	if _, err := w.buf.Write(payload); err != nil {
		return fmt.Errorf("write trail record: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush trail record: %w", err)
	}
	if syncWritesEnabled() && w.file != nil {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("sync trail record: %w", err)
		}
	}
	w.written += int64(len(payload))
	return nil
}

// Close flushes and closes the underlying file handle.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var firstErr error
	if w.buf != nil {
		if err := w.buf.Flush(); err != nil && !errors.Is(err, os.ErrClosed) {
			firstErr = err
		}
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.buf = nil
	w.file = nil
	w.written = 0
	return firstErr
}

func (w *Writer) ensureWriter() error {
	if w.buf != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create trail directory: %w", err)
	}
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open trail file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("stat trail file: %w", err)
	}
	w.file = file
	w.buf = bufio.NewWriterSize(file, defaultBufferSize)
	w.written = info.Size()
	return nil
}

func (w *Writer) rotateIfNeeded(next int64) error {
	if w.maxBytes <= 0 {
		return nil
	}
	if w.written+next <= w.maxBytes {
		return nil
	}

	if w.buf != nil {
		if err := w.buf.Flush(); err != nil {
			return fmt.Errorf("flush during rotation: %w", err)
		}
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("close during rotation: %w", err)
		}
	}

	for i := w.maxFiles - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", w.path, i)
		dst := fmt.Sprintf("%s.%d", w.path, i+1)
		if _, err := os.Stat(src); err == nil {
			if i+1 > w.maxFiles {
				_ = os.Remove(src)
				continue
			}
			if err := os.Rename(src, dst); err != nil {
				return fmt.Errorf("rotate trail file: %w", err)
			}
		}
	}
	if err := os.Rename(w.path, w.path+".1"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rotate trail file: %w", err)
	}

	w.buf = nil
	w.file = nil
	w.written = 0
	return w.ensureWriter()
}

func syncWritesEnabled() bool {
	return os.Getenv("ODX_SYNC_WRITES") == "1"
}

package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/cachesim/mem"
	"github.com/sarchlab/cachesim/mem/cache"
)

// OutputSuffix is appended to the trace path to name the result file.
const OutputSuffix = ".simulated"

// OutputPath returns where the results of a trace are written by default.
func OutputPath(tracePath string) string {
	return tracePath + OutputSuffix
}

// Writer echoes every trace line followed by its classification. It
// implements cache.Sink.
type Writer struct {
	w      *bufio.Writer
	closer io.Closer
	lines  uint64
}

// NewWriter creates a writer. Flush must be called once done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Create creates, or truncates, the result file.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating output: %w", err)
	}

	w := NewWriter(f)
	w.closer = f

	return w, nil
}

// Put writes one result line.
func (w *Writer) Put(record mem.TraceRecord, c cache.Classification) error {
	w.lines++

	if _, err := w.w.WriteString(record.Line); err != nil {
		return err
	}

	if err := w.w.WriteByte(' '); err != nil {
		return err
	}

	if _, err := w.w.WriteString(c.String()); err != nil {
		return err
	}

	return w.w.WriteByte('\n')
}

// Lines returns the number of results written.
func (w *Writer) Lines() uint64 {
	return w.lines
}

// Flush writes the buffered results.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Close flushes the results and closes the file if the writer created it.
func (w *Writer) Close() error {
	err := w.Flush()

	if w.closer != nil {
		if closeErr := w.closer.Close(); err == nil {
			err = closeErr
		}
	}

	return err
}

// Package trace reads memory access traces and writes the classification of
// every replayed access.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/cachesim/mem"
)

// AddressDigits is the width of the hexadecimal address field.
const AddressDigits = 8

// A ParseError reports a malformed trace line.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Reader yields the records of a trace in file order. It implements
// cache.Source.
type Reader struct {
	scanner    *bufio.Scanner
	closer     io.Closer
	lineNumber int
	fixedWidth bool
}

// NewReader creates a reader over a trace. The address field must have the
// fixed width unless WithFixedWidth(false) is called.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)

	return &Reader{
		scanner:    scanner,
		fixedWidth: true,
	}
}

// Open opens a trace file. The file is closed by Close.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace: %w", err)
	}

	r := NewReader(f)
	r.closer = f

	return r, nil
}

// WithFixedWidth sets whether addresses must have exactly AddressDigits hex
// digits. When false, 1 to AddressDigits digits are accepted.
func (r *Reader) WithFixedWidth(fixed bool) *Reader {
	r.fixedWidth = fixed
	return r
}

// Next returns the next record, or io.EOF when the trace is exhausted. Blank
// lines are skipped.
func (r *Reader) Next() (mem.TraceRecord, error) {
	for r.scanner.Scan() {
		r.lineNumber++

		line := strings.TrimRight(r.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		access, reason := ParseAccess(line, r.fixedWidth)
		if reason != "" {
			return mem.TraceRecord{}, &ParseError{
				Line:   r.lineNumber,
				Text:   line,
				Reason: reason,
			}
		}

		return mem.TraceRecord{
			LineNumber: r.lineNumber,
			Line:       line,
			Access:     access,
		}, nil
	}

	if err := r.scanner.Err(); err != nil {
		return mem.TraceRecord{}, fmt.Errorf("line %d: %w", r.lineNumber+1, err)
	}

	return mem.TraceRecord{}, io.EOF
}

// Close closes the underlying file if the reader opened it.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}

	return r.closer.Close()
}

// ParseAccess decodes one trace line. A non-empty reason describes why the
// line is malformed.
func ParseAccess(line string, fixedWidth bool) (access mem.Access, reason string) {
	if line == "" {
		return access, "missing access type"
	}

	kind, ok := mem.AccessKindFromByte(line[0])
	if !ok {
		return access, fmt.Sprintf("unknown access type %q", line[0])
	}

	if len(line) < 3 {
		return access, "missing address"
	}

	field := line[2:]
	if end := strings.IndexAny(field, " \t"); end >= 0 {
		field = field[:end]
	}

	digits := field
	if len(digits) >= 2 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		digits = digits[2:]
	}

	switch {
	case digits == "":
		return access, "missing address"
	case fixedWidth && len(digits) != AddressDigits:
		return access, fmt.Sprintf("address must have %d hex digits",
			AddressDigits)
	case len(digits) > AddressDigits:
		return access, "address does not fit in 32 bits"
	}

	addr, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return access, "address is not hexadecimal"
	}

	return mem.Access{Kind: kind, Address: uint32(addr)}, ""
}

// Package reader provides random access to an event log file and detects
// whether the file was appended to or overwritten between accesses.
//
// A Reader is not safe for concurrent use; it is owned by one event log.
package reader

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/papapumpkin/seqchart/internal/entry"
)

// DefaultFingerprintBytes is the length of the file head compared by
// CheckForChanges.
const DefaultFingerprintBytes = 4096

const cancelCheckInterval = 1024

// Change classifies the difference between the file seen at the last check
// and the file on disk now.
type Change int

// Change values reported by CheckForChanges.
const (
	// Unchanged means the file still has the size and head it had.
	Unchanged Change = iota
	// Appended means the file grew and its head is intact.
	Appended
	// Overwritten means the file shrank or its head differs.
	Overwritten
)

// String returns the lowercase change name.
func (c Change) String() string {
	switch c {
	case Unchanged:
		return "unchanged"
	case Appended:
		return "appended"
	case Overwritten:
		return "overwritten"
	}
	return fmt.Sprintf("change(%d)", int(c))
}

// Options configures a Reader.
type Options struct {
	// FingerprintBytes is the head length compared to detect rewrites.
	// Zero means DefaultFingerprintBytes.
	FingerprintBytes int
	Logger           *zap.Logger
}

// Position addresses the start of a line.
type Position struct {
	Offset int64
	// Line is the 1-based number of the line starting at Offset.
	Line int
}

// Start is the position of the first line of a file.
func Start() Position {
	return Position{Offset: 0, Line: 1}
}

// Line is one complete line of the file without its terminator.
type Line struct {
	Text   string
	Offset int64
	Number int
	// End is the offset just past the line terminator.
	End int64
}

// Reader reads lines of an event log file by offset.
type Reader struct {
	path   string
	f      *os.File
	info   os.FileInfo
	size   int64
	head   []byte
	fpLen  int
	logger *zap.Logger
}

// Open opens the log file at path. A missing file yields ErrFileNotFound.
func Open(path string, opts Options) (*Reader, error) {
	r := &Reader{
		path:   path,
		fpLen:  opts.FingerprintBytes,
		logger: opts.Logger,
	}
	if r.fpLen <= 0 {
		r.fpLen = DefaultFingerprintBytes
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	f, info, err := openFile(path)
	if err != nil {
		return nil, err
	}
	head, err := readHead(f, r.fpLen, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.f, r.info, r.size, r.head = f, info, info.Size(), head
	return r, nil
}

func openFile(path string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, nil, fmt.Errorf("opening event log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("stat event log: %w", err)
	}
	return f, info, nil
}

// Close releases the file handle.
func (r *Reader) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// Path returns the file path given to Open.
func (r *Reader) Path() string {
	return r.path
}

// Size returns the file size observed at Open or at the last
// CheckForChanges. Reads never go past it.
func (r *Reader) Size() int64 {
	return r.size
}

// readHead returns up to fpLen bytes from the start of f.
func readHead(f *os.File, fpLen int, size int64) ([]byte, error) {
	n := int64(fpLen)
	if size < n {
		n = size
	}
	buf := make([]byte, n)
	if _, err := f.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading file head: %w", err)
	}
	return buf, nil
}

// CheckForChanges compares the file on disk with the state seen at the last
// check. A smaller size, a different head or a replaced file is reported as
// Overwritten; a larger size with an unchanged head as Appended. The new
// size and head are adopted together, and only when the check succeeds.
func (r *Reader) CheckForChanges() (Change, error) {
	info, err := os.Stat(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Unchanged, fmt.Errorf("%w: %s", ErrFileNotFound, r.path)
		}
		return Unchanged, fmt.Errorf("stat event log: %w", err)
	}

	oldSize, oldHead := r.size, r.head
	change := Unchanged
	f := r.f
	if f == nil || !os.SameFile(info, r.info) {
		if f, info, err = openFile(r.path); err != nil {
			return Unchanged, err
		}
		change = Overwritten
	}
	head, err := readHead(f, r.fpLen, info.Size())
	if err != nil {
		if f != r.f {
			_ = f.Close()
		}
		return Unchanged, err
	}
	if f != r.f {
		if r.f != nil {
			_ = r.f.Close()
		}
		r.f = f
	}
	r.info, r.size, r.head = info, info.Size(), head

	if change == Unchanged {
		switch {
		case r.size < oldSize:
			change = Overwritten
		case len(head) < len(oldHead) || !bytes.Equal(head[:len(oldHead)], oldHead):
			change = Overwritten
		case r.size > oldSize:
			change = Appended
		}
	}
	if change != Unchanged {
		r.logger.Debug("event log file changed",
			zap.String("path", r.path),
			zap.Stringer("change", change),
			zap.Int64("old_size", oldSize),
			zap.Int64("size", r.size))
	}
	return change, nil
}

// ReadLines calls fn for every complete line between from and to, in file
// order. A negative to means Size(). A trailing line without terminator is
// not delivered. Returning ErrStop from fn ends the scan without error. The
// returned position is where the next scan should resume: past the last
// delivered line, or at the start of the line that stopped the scan.
func (r *Reader) ReadLines(ctx context.Context, from Position, to int64, fn func(Line) error) (Position, error) {
	if r.f == nil {
		return from, &FileChangedError{Change: Overwritten, Err: os.ErrClosed}
	}
	if to < 0 || to > r.size {
		to = r.size
	}
	pos := from
	if from.Offset >= to {
		return pos, nil
	}
	br := bufio.NewReaderSize(io.NewSectionReader(r.f, from.Offset, to-from.Offset), 64*1024)
	for n := 0; ; n++ {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return pos, err
			}
		}
		text, err := br.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return pos, nil
		}
		if err != nil {
			return pos, &FileChangedError{Change: Overwritten, Err: err}
		}
		end := pos.Offset + int64(len(text))
		line := Line{Text: strings.TrimRight(text, "\r\n"), Offset: pos.Offset, Number: pos.Line, End: end}
		if err := fn(line); err != nil {
			if errors.Is(err, ErrStop) {
				return pos, nil
			}
			return pos, err
		}
		pos = Position{Offset: end, Line: pos.Line + 1}
	}
}

// ReadEntryAt parses the line starting at offset. lineNumber is only used
// for error reporting. A line that is no longer complete in the file yields
// a *FileChangedError.
func (r *Reader) ReadEntryAt(offset int64, lineNumber int) (*entry.Entry, error) {
	if r.f == nil {
		return nil, &FileChangedError{Change: Overwritten, Err: os.ErrClosed}
	}
	if offset < 0 || offset >= r.size {
		return nil, &FileChangedError{Change: Overwritten, Err: fmt.Errorf("offset %d beyond end of file", offset)}
	}
	br := bufio.NewReader(io.NewSectionReader(r.f, offset, r.size-offset))
	text, err := br.ReadString('\n')
	if err != nil {
		return nil, &FileChangedError{Change: Overwritten, Err: err}
	}
	return entry.ParseLine(text, lineNumber, offset)
}

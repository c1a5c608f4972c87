// Package archive is the content-addressed firmware archive container
// (spec §6 "Archive surface"): a manifest entry (the rendered
// configuration) followed by resource payload entries, read and written
// in stored order. It is backed by klauspost/compress's zip
// implementation rather than stdlib archive/zip — the same streaming
// compressor dependency the rest of the retrieval pack's transfer tools
// reach for — because it writes true streaming entries (via a trailing
// data descriptor) without requiring the destination to be seekable.
package archive

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
)

// ManifestName is the conventional name of the first archive entry: the
// stringified configuration (spec §6, "conventionally first").
const ManifestName = "fwup.conf"

// Entry describes one archive member as Next reports it.
type Entry struct {
	Name string
	Size int64
}

// Writer streams entries into a new archive. Resource entries may be
// written without knowing their final length in advance.
type Writer struct {
	zw *zip.Writer
}

// NewWriter wraps w in an archive writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{zw: zip.NewWriter(w)}
}

// Create opens name for writing and returns a writer for its content.
// Writes are stored (not deflated): resource payloads are already
// content-addressed by a cryptographic hash, and a second compression
// pass buys fwup nothing it needs.
func (w *Writer) Create(name string) (io.Writer, error) {
	fw, err := w.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return nil, fmt.Errorf("archive: create %q: %w", name, err)
	}
	return fw, nil
}

// Close finalizes the archive's central directory.
func (w *Writer) Close() error {
	return w.zw.Close()
}

// Reader walks an archive's entries in stored order. The backing store
// must support random access because the zip format's central directory
// sits at the end of the file.
type Reader struct {
	files []*zip.File
	pos   int
}

// NewReader opens an archive of the given total size.
func NewReader(ra io.ReaderAt, size int64) (*Reader, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}
	return &Reader{files: zr.File}, nil
}

// Next returns the next entry and a reader for its content, or io.EOF
// once every entry has been consumed.
func (r *Reader) Next() (Entry, io.ReadCloser, error) {
	if r.pos >= len(r.files) {
		return Entry{}, nil, io.EOF
	}
	f := r.files[r.pos]
	r.pos++

	rc, err := f.Open()
	if err != nil {
		return Entry{}, nil, fmt.Errorf("archive: open entry %q: %w", f.Name, err)
	}
	return Entry{Name: f.Name, Size: int64(f.UncompressedSize64)}, rc, nil
}

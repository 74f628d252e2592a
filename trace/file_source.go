package trace

import (
	"fmt"
	"io"
)

// FileSource decodes records at arbitrary indices from a random-access
// byte source, for use by PrefetchCache. Records are fixed-width and
// unpadded, so index i starts at byte i * recordSize(variant).
type FileSource struct {
	ra      io.ReaderAt
	variant Variant
	size    int
}

// NewFileSource wraps ra as a RandomAccessSource decoding the given
// variant's record layout.
func NewFileSource(ra io.ReaderAt, variant Variant) *FileSource {
	return &FileSource{ra: ra, variant: variant, size: recordSize(variant)}
}

// RecordAt decodes the record at the given zero-based index.
func (s *FileSource) RecordAt(index uint64) (Record, error) {
	buf := make([]byte, s.size)
	off := int64(index) * int64(s.size)

	if _, err := s.ra.ReadAt(buf, off); err != nil {
		return Record{}, fmt.Errorf("trace: read record %d at offset %d: %w", index, off, err)
	}

	return decode(buf, s.variant), nil
}

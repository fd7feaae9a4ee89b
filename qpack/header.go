package qpack

import "strings"

// entrySizeOverhead is the fixed per-entry overhead used for dynamic
// table accounting and header list size limits (RFC 9204, Section 3.2.1).
const entrySizeOverhead = 32

type HeaderField struct {
	Name  string
	Value string
}

func NewHeaderField(name, value string) HeaderField {
	return HeaderField{
		Name:  strings.ToLower(name),
		Value: value,
	}
}

func (h HeaderField) Size() uint64 {
	return uint64(len(h.Name)+len(h.Value)) + entrySizeOverhead
}

// HeaderList is an ordered list of decoded header fields together with
// accounting of compressed and uncompressed sizes. A list whose total
// size exceeds the configured limit is delivered empty rather than as
// an error: oversized is not malformed.
type HeaderList struct {
	fields []HeaderField

	uncompressedBytes uint64
	compressedBytes   uint64

	maxSize   uint64
	sizeSoFar uint64
	overLimit bool
}

func newHeaderList(maxSize uint64) HeaderList {
	return HeaderList{maxSize: maxSize}
}

func (l *HeaderList) appendField(f HeaderField) {
	l.sizeSoFar += f.Size()
	if l.sizeSoFar > l.maxSize {
		l.overLimit = true
		return
	}
	l.fields = append(l.fields, f)
	l.uncompressedBytes += uint64(len(f.Name) + len(f.Value))
}

// endBlock finalizes accounting for the block. If the limit was
// exceeded the list is cleared.
func (l *HeaderList) endBlock(compressedBytes uint64) {
	if l.overLimit {
		l.fields = nil
		l.uncompressedBytes = 0
		return
	}
	l.compressedBytes = compressedBytes
}

func (l *HeaderList) Fields() []HeaderField { return l.fields }

func (l *HeaderList) Len() int { return len(l.fields) }

func (l *HeaderList) Empty() bool { return len(l.fields) == 0 }

// UncompressedBytes is the sum of the name and value lengths of the
// delivered fields.
func (l *HeaderList) UncompressedBytes() uint64 { return l.uncompressedBytes }

// CompressedBytes is the wire size of the header block the list was
// decoded from.
func (l *HeaderList) CompressedBytes() uint64 { return l.compressedBytes }

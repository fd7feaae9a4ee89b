package qpack

import "errors"

// Connection-fatal decoding errors. Any of these desynchronizes the
// shared table state and must close the connection.
var (
	ErrVarintTooLong        = errors.New("prefixed integer too long")
	ErrHuffmanDecoding      = errors.New("huffman decoding error")
	ErrStaticEntryNotFound  = errors.New("static table entry not found")
	ErrDynamicEntryNotFound = errors.New("dynamic table entry not found")
	ErrInvalidRelativeIndex = errors.New("invalid relative index")

	ErrInvalidRequiredInsertCount  = errors.New("invalid required insert count")
	ErrInvalidBase                 = errors.New("invalid base in header block prefix")
	ErrInvalidInsertCountIncrement = errors.New("invalid insert count increment")

	ErrIncompleteHeaderBlock      = errors.New("incomplete header block")
	ErrIncompleteHeaderDataPrefix = errors.New("incomplete header data prefix")

	ErrTooManyBlockedStreams           = errors.New("too many blocked streams")
	ErrUnexpectedHeaderAcknowledgement = errors.New("header acknowledgement for stream with no outstanding header blocks")
)

// Dynamic table errors. ErrEntryTooLarge and ErrCapacityTooLarge are
// protocol violations when triggered by peer instructions;
// errTableFull only ever occurs encoder-side, where it downgrades an
// insertion to a literal representation.
var (
	ErrEntryTooLarge    = errors.New("entry too large for dynamic table")
	ErrCapacityTooLarge = errors.New("dynamic table capacity exceeds maximum")

	errTableFull = errors.New("dynamic table eviction blocked by outstanding references")
)

// errNeedMore signals that an instruction or representation is
// truncated and decoding should resume once more bytes arrive. It is
// never surfaced outside the package.
var errNeedMore = errors.New("need more data")

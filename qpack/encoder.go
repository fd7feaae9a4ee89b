package qpack

import "io"

// DecoderStreamErrorDelegate is notified when data received on the
// decoder stream is malformed or inconsistent. This must be treated as
// a connection error by the caller.
type DecoderStreamErrorDelegate interface {
	OnDecoderStreamError(err error)
}

// unackedBlock tracks one emitted header block until the peer
// acknowledges it. minReference pins the oldest dynamic table entry
// the block depends on so it cannot be evicted in the meantime.
type unackedBlock struct {
	requiredInsertCount uint64
	minReference        uint64
}

// Encoder transforms header lists into header blocks. Exactly one
// instance exists per connection. Table mutations are emitted as side
// effects on the encoder stream; feedback arrives through
// DecodeDecoderStreamData.
type Encoder struct {
	table    *dynamicTable
	sender   encoderStreamSender
	receiver decoderStreamReceiver

	errDelegate DecoderStreamErrorDelegate

	maxBlockedStreams  uint64
	knownReceivedCount uint64

	// Outstanding header blocks per stream, oldest first.
	unacked map[uint64][]unackedBlock
}

// NewEncoder returns an encoder that writes table instructions to
// encoderStream. The dynamic table stays disabled until
// SetMaximumDynamicTableCapacity is called with a non-zero value.
func NewEncoder(encoderStream io.Writer, errDelegate DecoderStreamErrorDelegate) *Encoder {
	e := &Encoder{
		table:       newDynamicTable(0),
		sender:      encoderStreamSender{w: encoderStream},
		errDelegate: errDelegate,
		unacked:     map[uint64][]unackedBlock{},
	}
	e.receiver.delegate = e
	return e
}

// SetMaximumDynamicTableCapacity applies the peer's
// SETTINGS_QPACK_MAX_TABLE_CAPACITY value, sizes the local table to it
// and announces the chosen capacity on the encoder stream.
func (e *Encoder) SetMaximumDynamicTableCapacity(capacity uint64) error {
	e.table.maxCapacity = capacity
	if err := e.table.setCapacity(capacity); err != nil {
		return err
	}
	if capacity == 0 {
		return nil
	}
	return e.sender.sendSetDynamicTableCapacity(capacity)
}

// SetMaximumBlockedStreams applies the peer's
// SETTINGS_QPACK_BLOCKED_STREAMS value.
func (e *Encoder) SetMaximumBlockedStreams(count uint64) {
	e.maxBlockedStreams = count
}

// DecodeDecoderStreamData feeds bytes received on the decoder stream.
// Errors are reported to the DecoderStreamErrorDelegate.
func (e *Encoder) DecodeDecoderStreamData(data []byte) {
	if err := e.receiver.decode(data); err != nil {
		e.errDelegate.OnDecoderStreamError(wrapStreamError("decoder", err))
	}
}

// blockedStreamCount is the number of streams with at least one
// outstanding header block the peer cannot have decoded yet.
func (e *Encoder) blockedStreamCount() uint64 {
	var n uint64
	for _, blocks := range e.unacked {
		for _, blk := range blocks {
			if blk.requiredInsertCount > e.knownReceivedCount {
				n++
				break
			}
		}
	}
	return n
}

// allowedToBlock reports whether a new header block on streamID may
// reference entries beyond knownReceivedCount. A stream that is
// already blocked does not count against the budget twice.
func (e *Encoder) allowedToBlock(streamID uint64) bool {
	for _, blk := range e.unacked[streamID] {
		if blk.requiredInsertCount > e.knownReceivedCount {
			return true
		}
	}
	return e.blockedStreamCount() < e.maxBlockedStreams
}

// evictionBound is the lowest absolute index that must survive
// eviction: everything at or above it is either unacknowledged or
// referenced by an unacknowledged header block.
func (e *Encoder) evictionBound() uint64 {
	bound := e.knownReceivedCount + 1
	for _, blocks := range e.unacked {
		for _, blk := range blocks {
			if blk.minReference < bound {
				bound = blk.minReference
			}
		}
	}
	return bound
}

// shouldIndex is the insertion heuristic: favor indexing whenever the
// entry fits the table at all. Deliberately a tunable policy, not a
// protocol requirement.
func (e *Encoder) shouldIndex(f HeaderField) bool {
	return f.Size() <= e.table.capacity
}

// EncodeHeaderList encodes headers into a header block for the given
// stream, emitting any table insertions on the encoder stream as a
// side effect.
func (e *Encoder) EncodeHeaderList(streamID uint64, headers []HeaderField) ([]byte, error) {
	t := e.table
	base := t.insertCount
	allowedToBlock := e.allowedToBlock(streamID)

	var (
		buf    []byte
		maxRef uint64
		minRef uint64 = noEvictionBound
	)

	refDynamic := func(abs uint64) {
		if abs > maxRef {
			maxRef = abs
		}
		if abs < minRef {
			minRef = abs
		}
	}
	// References made earlier in this block need protection too, not
	// just acknowledged state.
	bound := func() uint64 {
		b := e.evictionBound()
		if minRef < b {
			b = minRef
		}
		return b
	}
	canReference := func(abs uint64) bool {
		return abs <= e.knownReceivedCount || allowedToBlock
	}
	writeIndexed := func(abs uint64) {
		if abs <= base {
			buf = appendVarint(buf, 0x80, 6, base-abs)
		} else {
			buf = appendVarint(buf, 0x10, 4, abs-base-1)
		}
		refDynamic(abs)
	}

	for _, h := range headers {
		h = NewHeaderField(h.Name, h.Value)

		// Exact static match.
		if idx, ok := staticFindExact(h.Name, h.Value); ok {
			buf = appendVarint(buf, 0xc0, 6, idx)
			continue
		}

		// Exact dynamic match.
		if abs, ok := t.findExact(h.Name, h.Value); ok && canReference(abs) {
			if !t.draining(abs) {
				writeIndexed(abs)
				continue
			}
			// Entry is close to eviction: refresh it with a
			// Duplicate and reference the copy instead. The original
			// may be evicted by the insertion itself; the peer reads
			// it before evicting.
			if allowedToBlock {
				rel := t.insertCount - abs
				if newAbs, err := t.duplicate(abs, bound()); err == nil {
					if err := e.sender.sendDuplicate(rel); err != nil {
						return nil, err
					}
					writeIndexed(newAbs)
					continue
				}
			}
		}

		// Name match in the static table.
		if idx, ok := staticFindName(h.Name); ok {
			if allowedToBlock && e.shouldIndex(h) {
				if newAbs, err := t.insert(h, bound()); err == nil {
					if err := e.sender.sendInsertWithNameReference(true, idx, h.Value); err != nil {
						return nil, err
					}
					writeIndexed(newAbs)
					continue
				}
			}
			buf = appendVarint(buf, 0x50, 4, idx)
			buf = appendStringLiteral(buf, 0, 7, h.Value)
			continue
		}

		// Name match in the dynamic table.
		if abs, ok := t.findName(h.Name); ok && canReference(abs) && !t.draining(abs) {
			if allowedToBlock && e.shouldIndex(h) {
				rel := t.insertCount - abs
				if newAbs, err := t.insert(h, bound()); err == nil {
					if err := e.sender.sendInsertWithNameReference(false, rel, h.Value); err != nil {
						return nil, err
					}
					writeIndexed(newAbs)
					continue
				}
			}
			if abs <= base {
				buf = appendVarint(buf, 0x40, 4, base-abs)
			} else {
				buf = appendVarint(buf, 0, 3, abs-base-1)
			}
			buf = appendStringLiteral(buf, 0, 7, h.Value)
			refDynamic(abs)
			continue
		}

		// No match: optionally insert, otherwise plain literal.
		if allowedToBlock && e.shouldIndex(h) {
			if newAbs, err := t.insert(h, bound()); err == nil {
				if err := e.sender.sendInsertWithoutNameReference(h.Name, h.Value); err != nil {
					return nil, err
				}
				writeIndexed(newAbs)
				continue
			}
		}
		buf = appendStringLiteral(buf, 0x20, 3, h.Name)
		buf = appendStringLiteral(buf, 0, 7, h.Value)
	}

	requiredInsertCount := maxRef
	var prefixBase uint64
	if requiredInsertCount > 0 {
		prefixBase = base
		e.unacked[streamID] = append(e.unacked[streamID], unackedBlock{
			requiredInsertCount: requiredInsertCount,
			minReference:        minRef,
		})
	}
	block := appendHeaderBlockPrefix(nil, requiredInsertCount, prefixBase, t.maxEntries())
	return append(block, buf...), nil
}

// Decoder stream instruction handlers.

func (e *Encoder) OnHeaderAcknowledgement(streamID uint64) error {
	blocks := e.unacked[streamID]
	if len(blocks) == 0 {
		return ErrUnexpectedHeaderAcknowledgement
	}
	blk := blocks[0]
	if len(blocks) == 1 {
		delete(e.unacked, streamID)
	} else {
		e.unacked[streamID] = blocks[1:]
	}
	if blk.requiredInsertCount > e.knownReceivedCount {
		e.knownReceivedCount = blk.requiredInsertCount
	}
	return nil
}

func (e *Encoder) OnStreamCancellation(streamID uint64) error {
	delete(e.unacked, streamID)
	return nil
}

func (e *Encoder) OnInsertCountIncrement(increment uint64) error {
	if increment == 0 || e.knownReceivedCount+increment > e.table.insertCount {
		return ErrInvalidInsertCountIncrement
	}
	e.knownReceivedCount += increment
	return nil
}

package qpack

// Visitor receives the outcome of decoding one header block. Exactly
// one of the callbacks fires, exactly once.
type Visitor interface {
	// OnHeadersDecoded delivers the decoded list. A list that
	// exceeded the size limit arrives empty; that is not an error.
	OnHeadersDecoded(headers HeaderList)
	// OnHeaderDecodingError reports a malformed header block. The
	// caller must treat this as a connection error.
	OnHeaderDecodingError(err error)
}

type accumulatorState int

const (
	stateAwaitingPrefix accumulatorState = iota
	stateDecoding
	stateBlocked
	stateComplete
	stateError
)

// DecodedHeadersAccumulator buffers and decodes the header block of a
// single stream. Decoding suspends while the block references dynamic
// table entries that have not arrived yet and resumes synchronously
// from the insertion that satisfies the requirement.
//
//	awaitingPrefix -> decoding <-> blocked -> complete | error
//
// complete and error are terminal.
type DecodedHeadersAccumulator struct {
	streamID uint64
	decoder  *Decoder
	visitor  Visitor

	state accumulatorState
	buf   []byte
	ended bool

	requiredInsertCount uint64
	base                uint64

	headers         HeaderList
	compressedBytes uint64
}

func NewDecodedHeadersAccumulator(streamID uint64, decoder *Decoder, visitor Visitor, maxHeaderListSize uint64) *DecodedHeadersAccumulator {
	return &DecodedHeadersAccumulator{
		streamID: streamID,
		decoder:  decoder,
		visitor:  visitor,
		headers:  newHeaderList(maxHeaderListSize),
	}
}

// Decode buffers a fragment of the header block and decodes as far as
// the available bytes and table state allow.
func (a *DecodedHeadersAccumulator) Decode(data []byte) {
	if a.terminal() {
		return
	}
	a.compressedBytes += uint64(len(data))
	a.buf = append(a.buf, data...)
	if a.state == stateBlocked {
		return
	}
	a.run()
}

// EndHeaderBlock signals that the final fragment has been passed to
// Decode. Completion is deferred while the accumulator is blocked.
func (a *DecodedHeadersAccumulator) EndHeaderBlock() {
	if a.terminal() {
		return
	}
	a.ended = true
	switch a.state {
	case stateBlocked:
		return
	case stateAwaitingPrefix:
		a.fail(ErrIncompleteHeaderDataPrefix)
	default:
		if len(a.buf) > 0 {
			a.fail(ErrIncompleteHeaderBlock)
			return
		}
		a.finish()
	}
}

// Cancel releases the accumulator after a stream reset, informing the
// peer so its eviction accounting stays correct.
func (a *DecodedHeadersAccumulator) Cancel() {
	if a.terminal() {
		return
	}
	a.decoder.onStreamReset(a)
	a.state = stateError
}

func (a *DecodedHeadersAccumulator) terminal() bool {
	return a.state == stateComplete || a.state == stateError
}

// resume is called by the decoder once the table mirror satisfies the
// block's Required Insert Count.
func (a *DecodedHeadersAccumulator) resume() {
	a.state = stateDecoding
	a.run()
}

func (a *DecodedHeadersAccumulator) run() {
	if a.state == stateAwaitingPrefix {
		err := a.parsePrefix()
		if err == errNeedMore {
			return
		}
		if err != nil {
			a.fail(err)
			return
		}
		if a.requiredInsertCount > a.decoder.table.insertCount {
			if err := a.decoder.registerBlocked(a); err != nil {
				a.fail(err)
				return
			}
			a.state = stateBlocked
			return
		}
		a.state = stateDecoding
	}

	for len(a.buf) > 0 {
		err := a.parseRepresentation()
		if err == errNeedMore {
			// No more bytes are coming once the block has ended, so a
			// truncated representation is fatal then.
			if a.ended {
				a.fail(ErrIncompleteHeaderBlock)
			}
			return
		}
		if err != nil {
			a.fail(err)
			return
		}
	}
	if a.ended {
		a.finish()
	}
}

func (a *DecodedHeadersAccumulator) parsePrefix() error {
	encodedRIC, rest, err := readVarint(a.buf, 8)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return errNeedMore
	}
	sign := rest[0]&0x80 != 0
	deltaBase, rest, err := readVarint(rest, 7)
	if err != nil {
		return err
	}
	t := a.decoder.table
	ric, err := decodeRequiredInsertCount(encodedRIC, t.maxEntries(), t.insertCount)
	if err != nil {
		return err
	}
	base, err := decodeBase(ric, sign, deltaBase)
	if err != nil {
		return err
	}
	a.requiredInsertCount = ric
	a.base = base
	a.buf = rest
	return nil
}

// parseRepresentation decodes one field line representation from the
// front of the buffer. The buffer is only consumed when the whole
// representation parses, so truncated input can resume later.
func (a *DecodedHeadersAccumulator) parseRepresentation() error {
	b := a.buf
	switch first := b[0]; {
	case first&0x80 != 0:
		// Indexed field line.
		index, rest, err := readVarint(b, 6)
		if err != nil {
			return err
		}
		f, err := a.lookupIndexed(first&0x40 != 0, index)
		if err != nil {
			return err
		}
		a.headers.appendField(f)
		a.buf = rest
		return nil
	case first&0x40 != 0:
		// Literal field line with name reference.
		index, rest, err := readVarint(b, 4)
		if err != nil {
			return err
		}
		value, rest, err := readStringLiteral(rest, 7)
		if err != nil {
			return err
		}
		f, err := a.lookupIndexed(first&0x10 != 0, index)
		if err != nil {
			return err
		}
		a.headers.appendField(HeaderField{Name: f.Name, Value: value})
		a.buf = rest
		return nil
	case first&0x20 != 0:
		// Literal field line with literal name.
		name, rest, err := readStringLiteral(b, 3)
		if err != nil {
			return err
		}
		value, rest, err := readStringLiteral(rest, 7)
		if err != nil {
			return err
		}
		a.headers.appendField(HeaderField{Name: name, Value: value})
		a.buf = rest
		return nil
	case first&0x10 != 0:
		// Indexed field line with post-base index.
		index, rest, err := readVarint(b, 4)
		if err != nil {
			return err
		}
		f, err := a.lookupPostBase(index)
		if err != nil {
			return err
		}
		a.headers.appendField(f)
		a.buf = rest
		return nil
	default:
		// Literal field line with post-base name reference.
		index, rest, err := readVarint(b, 3)
		if err != nil {
			return err
		}
		value, rest, err := readStringLiteral(rest, 7)
		if err != nil {
			return err
		}
		f, err := a.lookupPostBase(index)
		if err != nil {
			return err
		}
		a.headers.appendField(HeaderField{Name: f.Name, Value: value})
		a.buf = rest
		return nil
	}
}

func (a *DecodedHeadersAccumulator) lookupIndexed(isStatic bool, index uint64) (HeaderField, error) {
	if isStatic {
		return staticLookup(index)
	}
	if index >= a.base {
		return HeaderField{}, ErrInvalidRelativeIndex
	}
	return a.decoder.table.lookupAbsolute(a.base - index)
}

func (a *DecodedHeadersAccumulator) lookupPostBase(index uint64) (HeaderField, error) {
	return a.decoder.table.lookupAbsolute(a.base + index + 1)
}

func (a *DecodedHeadersAccumulator) finish() {
	a.headers.endBlock(a.compressedBytes)
	a.state = stateComplete
	a.decoder.onBlockComplete(a.streamID, a.requiredInsertCount)
	a.visitor.OnHeadersDecoded(a.headers)
}

func (a *DecodedHeadersAccumulator) fail(err error) {
	if a.state == stateBlocked {
		a.decoder.unregisterBlocked(a)
	}
	a.state = stateError
	a.visitor.OnHeaderDecodingError(err)
}

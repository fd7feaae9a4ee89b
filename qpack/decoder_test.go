package qpack

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderAppliesEncoderStreamInstructions(t *testing.T) {
	decoder, decoderStream := newTestDecoder(t, 1024, 100)

	// Set capacity, insert without name reference, insert with static
	// name reference, duplicate.
	decoder.DecodeEncoderStreamData(unhex(t, "3fe107"))
	decoder.DecodeEncoderStreamData(unhex(t, insertFooBar))
	decoder.DecodeEncoderStreamData(unhex(t, "c20132"))
	decoder.DecodeEncoderStreamData(unhex(t, "01"))

	assert.Equal(t, uint64(1024), decoder.table.capacity)
	require.Equal(t, uint64(3), decoder.table.insertCount)

	f, err := decoder.table.lookupAbsolute(1)
	require.NoError(t, err)
	assert.Equal(t, HeaderField{Name: "foo", Value: "bar"}, f)

	f, err = decoder.table.lookupAbsolute(2)
	require.NoError(t, err)
	assert.Equal(t, HeaderField{Name: "age", Value: "2"}, f)

	// Duplicate with relative index 1 re-inserts entry 1.
	f, err = decoder.table.lookupAbsolute(3)
	require.NoError(t, err)
	assert.Equal(t, HeaderField{Name: "foo", Value: "bar"}, f)

	// Each batch of insertions is reported as one increment.
	assert.Equal(t, []byte{0x01, 0x01, 0x01}, decoderStream.Bytes())
}

func TestDecoderInsertBeforeCapacityInstruction(t *testing.T) {
	// The mirror is usable at the advertised maximum right away: an
	// insertion arriving without a prior Set Dynamic Table Capacity
	// instruction must be applied, not rejected as too large.
	decoder, decoderStream := newTestDecoder(t, 1024, 100)
	assert.Equal(t, uint64(1024), decoder.table.capacity)

	visitor := &testVisitor{}
	acc := NewDecodedHeadersAccumulator(1, decoder, visitor, 1<<20)
	acc.Decode(unhex(t, "020080"))
	acc.EndHeaderBlock()

	decoder.DecodeEncoderStreamData(unhex(t, insertFooBar))
	assert.Empty(t, decoder.errDelegate.(*streamErrorLog).errs)
	require.Equal(t, uint64(1), decoder.table.insertCount)
	require.NotNil(t, visitor.headers)
	assert.Equal(t, []HeaderField{{Name: "foo", Value: "bar"}}, visitor.headers.Fields())
	assert.Equal(t, []byte{0x81}, decoderStream.Bytes())
}

func TestDecoderInsertWithDynamicNameReference(t *testing.T) {
	decoder, _ := newTestDecoder(t, 1024, 100)
	require.NoError(t, decoder.OnInsertWithoutNameReference("foo", "bar"))

	// Relative index 0 on the encoder stream is the most recent entry.
	require.NoError(t, decoder.OnInsertWithNameReference(false, 0, "hi"))

	f, err := decoder.table.lookupAbsolute(2)
	require.NoError(t, err)
	assert.Equal(t, HeaderField{Name: "foo", Value: "hi"}, f)
}

func TestDecoderBatchedInsertCountIncrement(t *testing.T) {
	decoder, decoderStream := newTestDecoder(t, 1024, 100)

	// Three insertions in a single flight of encoder stream data
	// produce a single increment of 3.
	decoder.DecodeEncoderStreamData(unhex(t, insertFooBar+insertFooBar+insertFooBar))
	assert.Equal(t, []byte{0x03}, decoderStream.Bytes())
	assert.Equal(t, uint64(3), decoder.reportedInsertCount)
}

func TestDecoderAcknowledgementCoversInsertions(t *testing.T) {
	decoder, decoderStream := newTestDecoder(t, 1024, 100)
	visitor := &testVisitor{}
	acc := NewDecodedHeadersAccumulator(1, decoder, visitor, 1<<20)
	acc.Decode(unhex(t, "020080"))
	acc.EndHeaderBlock()

	// The Header Acknowledgement already conveys the insertion, so no
	// Insert Count Increment follows.
	decoder.DecodeEncoderStreamData(unhex(t, insertFooBar))
	assert.Equal(t, []byte{0x81}, decoderStream.Bytes())
}

func TestDecoderStaticNameReferenceNotFound(t *testing.T) {
	decoder := NewDecoder(1024, 100, &streamErrorLog{})
	errLog := decoder.errDelegate.(*streamErrorLog)

	// Insert with static name reference to index 99.
	decoder.DecodeEncoderStreamData(unhex(t, "ff240130"))
	require.Len(t, errLog.errs, 1)
	assert.True(t, errors.Is(errLog.errs[0], ErrStaticEntryNotFound))
}

func TestDecoderCapacityExceedsMaximum(t *testing.T) {
	decoder := NewDecoder(256, 100, &streamErrorLog{})
	errLog := decoder.errDelegate.(*streamErrorLog)

	decoder.DecodeEncoderStreamData(unhex(t, "3fe107"))
	require.Len(t, errLog.errs, 1)
	assert.True(t, errors.Is(errLog.errs[0], ErrCapacityTooLarge))
	assert.Equal(t, uint64(256), decoder.table.capacity)
}

func TestDecoderInvalidDuplicate(t *testing.T) {
	decoder := NewDecoder(1024, 100, &streamErrorLog{})
	errLog := decoder.errDelegate.(*streamErrorLog)

	decoder.DecodeEncoderStreamData(unhex(t, "3fe107"))
	decoder.DecodeEncoderStreamData([]byte{0x00})
	require.Len(t, errLog.errs, 1)
	assert.True(t, errors.Is(errLog.errs[0], ErrDynamicEntryNotFound))
}

func TestDecoderSplitInstruction(t *testing.T) {
	decoder, decoderStream := newTestDecoder(t, 1024, 100)
	data := unhex(t, insertFooBar)

	decoder.DecodeEncoderStreamData(data[:3])
	assert.Zero(t, decoder.table.insertCount)
	assert.Zero(t, decoderStream.Len())

	decoder.DecodeEncoderStreamData(data[3:])
	assert.Equal(t, uint64(1), decoder.table.insertCount)
	assert.Equal(t, []byte{0x01}, decoderStream.Bytes())
}

func TestDecoderEntryTooLargeForTable(t *testing.T) {
	decoder := NewDecoder(40, 100, &streamErrorLog{})
	errLog := decoder.errDelegate.(*streamErrorLog)
	require.NoError(t, decoder.OnSetDynamicTableCapacity(40))

	// 3+9+32 bytes exceed the 40-byte capacity.
	err := decoder.OnInsertWithoutNameReference("foo", "barbarbar")
	assert.Equal(t, ErrEntryTooLarge, err)
	assert.Empty(t, errLog.errs)
}

func TestDecoderUnblocksInBlockingOrder(t *testing.T) {
	decoder, _ := newTestDecoder(t, 1024, 100)

	var order []uint64
	visitorFor := func(id uint64) Visitor {
		return visitorFunc(func(HeaderList) { order = append(order, id) })
	}

	for _, id := range []uint64{3, 1, 2} {
		acc := NewDecodedHeadersAccumulator(id, decoder, visitorFor(id), 1<<20)
		acc.Decode(unhex(t, "020080"))
		acc.EndHeaderBlock()
	}

	decoder.DecodeEncoderStreamData(unhex(t, insertFooBar))
	assert.Equal(t, []uint64{3, 1, 2}, order)
}

// visitorFunc adapts a function to the success half of Visitor.
type visitorFunc func(HeaderList)

func (f visitorFunc) OnHeadersDecoded(headers HeaderList) { f(headers) }
func (f visitorFunc) OnHeaderDecodingError(err error)     { panic(err) }

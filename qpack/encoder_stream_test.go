package qpack

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingEncoderDelegate collects parsed encoder stream instructions
// as human-readable strings.
type recordingEncoderDelegate struct {
	events []string
	err    error
}

func (d *recordingEncoderDelegate) OnInsertWithNameReference(isStatic bool, nameIndex uint64, value string) error {
	table := "dynamic"
	if isStatic {
		table = "static"
	}
	d.events = append(d.events, fmt.Sprintf("insert name=%s[%d] value=%q", table, nameIndex, value))
	return d.err
}

func (d *recordingEncoderDelegate) OnInsertWithoutNameReference(name, value string) error {
	d.events = append(d.events, fmt.Sprintf("insert name=%q value=%q", name, value))
	return d.err
}

func (d *recordingEncoderDelegate) OnDuplicate(relIndex uint64) error {
	d.events = append(d.events, fmt.Sprintf("duplicate %d", relIndex))
	return d.err
}

func (d *recordingEncoderDelegate) OnSetDynamicTableCapacity(capacity uint64) error {
	d.events = append(d.events, fmt.Sprintf("capacity %d", capacity))
	return d.err
}

func TestEncoderStreamInstructions(t *testing.T) {
	var buf bytes.Buffer
	sender := encoderStreamSender{w: &buf}

	require.NoError(t, sender.sendSetDynamicTableCapacity(1024))
	require.NoError(t, sender.sendInsertWithNameReference(true, 2, "42"))
	require.NoError(t, sender.sendInsertWithoutNameReference("foo", "bar"))
	require.NoError(t, sender.sendInsertWithNameReference(false, 0, "baz"))
	require.NoError(t, sender.sendDuplicate(1))

	delegate := &recordingEncoderDelegate{}
	receiver := &encoderStreamReceiver{delegate: delegate}
	require.NoError(t, receiver.decode(buf.Bytes()))

	assert.Equal(t, []string{
		"capacity 1024",
		`insert name=static[2] value="42"`,
		`insert name="foo" value="bar"`,
		`insert name=dynamic[0] value="baz"`,
		"duplicate 1",
	}, delegate.events)
	assert.Empty(t, receiver.buf)
}

func TestEncoderStreamGoldenBytes(t *testing.T) {
	var buf bytes.Buffer
	sender := encoderStreamSender{w: &buf}

	// Capacity 1024 overflows the 5-bit prefix.
	require.NoError(t, sender.sendSetDynamicTableCapacity(1024))
	assert.Equal(t, []byte{0x3f, 0xe1, 0x07}, buf.Bytes())

	// "foo" Huffman-codes to two bytes, "bar" stays raw.
	buf.Reset()
	require.NoError(t, sender.sendInsertWithoutNameReference("foo", "bar"))
	assert.Equal(t, []byte{0x62, 0x94, 0xe7, 0x03, 'b', 'a', 'r'}, buf.Bytes())

	buf.Reset()
	require.NoError(t, sender.sendDuplicate(0))
	assert.Equal(t, []byte{0x00}, buf.Bytes())
}

func TestEncoderStreamIncremental(t *testing.T) {
	var buf bytes.Buffer
	sender := encoderStreamSender{w: &buf}
	require.NoError(t, sender.sendInsertWithoutNameReference("foo", "bar"))
	require.NoError(t, sender.sendDuplicate(0))
	data := buf.Bytes()

	delegate := &recordingEncoderDelegate{}
	receiver := &encoderStreamReceiver{delegate: delegate}

	// Byte at a time: partial instructions stay buffered, each
	// instruction fires exactly once.
	for _, b := range data {
		require.NoError(t, receiver.decode([]byte{b}))
	}
	assert.Equal(t, []string{
		`insert name="foo" value="bar"`,
		"duplicate 0",
	}, delegate.events)
}

func TestEncoderStreamDelegateError(t *testing.T) {
	delegate := &recordingEncoderDelegate{err: ErrDynamicEntryNotFound}
	receiver := &encoderStreamReceiver{delegate: delegate}

	err := receiver.decode([]byte{0x00})
	assert.Equal(t, ErrDynamicEntryNotFound, err)
}

package qpack

import "io"

// EncoderStreamErrorDelegate is notified when data received on the
// encoder stream is malformed or references a missing table entry.
// This must be treated as a connection error by the caller.
type EncoderStreamErrorDelegate interface {
	OnEncoderStreamError(err error)
}

// Decoder owns the decoder-side dynamic table mirror. Exactly one
// instance exists per connection; header blocks are decoded through
// per-stream DecodedHeadersAccumulator instances that reference the
// shared mirror.
type Decoder struct {
	table    *dynamicTable
	receiver encoderStreamReceiver
	sender   decoderStreamSender

	errDelegate EncoderStreamErrorDelegate

	maxBlockedStreams uint64

	// Blocked accumulators in the order they became blocked.
	// Unblocking happens synchronously within the insertion that
	// satisfies the requirement.
	blocked []*DecodedHeadersAccumulator

	// Highest insert count conveyed to the peer so far, through
	// either Header Acknowledgements or Insert Count Increments.
	reportedInsertCount uint64
}

// NewDecoder returns a decoder whose table mirror is bounded by
// maxTableCapacity and which admits at most maxBlockedStreams blocked
// header blocks. Decoder stream output is discarded until
// SetDecoderStreamWriter is called.
func NewDecoder(maxTableCapacity, maxBlockedStreams uint64, errDelegate EncoderStreamErrorDelegate) *Decoder {
	table := newDynamicTable(maxTableCapacity)
	// The mirror starts at the advertised maximum so insertions may
	// arrive before any Set Dynamic Table Capacity instruction; the
	// instruction can only shrink the table or restore it to the
	// maximum.
	table.capacity = maxTableCapacity
	d := &Decoder{
		table:             table,
		sender:            decoderStreamSender{w: io.Discard},
		errDelegate:       errDelegate,
		maxBlockedStreams: maxBlockedStreams,
	}
	d.receiver.delegate = d
	return d
}

// SetDecoderStreamWriter directs synchronization feedback (acks,
// cancellations, insert count increments) to the decoder stream.
func (d *Decoder) SetDecoderStreamWriter(w io.Writer) {
	d.sender.w = w
}

// DecodeEncoderStreamData feeds bytes received on the encoder stream.
// Table mutations are applied to the mirror and any newly satisfied
// blocked streams resume before this returns. Progress not covered by
// a Header Acknowledgement is reported with a batched Insert Count
// Increment.
func (d *Decoder) DecodeEncoderStreamData(data []byte) {
	if err := d.receiver.decode(data); err != nil {
		d.errDelegate.OnEncoderStreamError(wrapStreamError("encoder", err))
		return
	}
	d.flushInsertCountIncrement()
}

func (d *Decoder) flushInsertCountIncrement() {
	if d.table.insertCount <= d.reportedInsertCount {
		return
	}
	increment := d.table.insertCount - d.reportedInsertCount
	d.reportedInsertCount = d.table.insertCount
	d.sender.sendInsertCountIncrement(increment)
}

// Encoder stream instruction handlers.

func (d *Decoder) OnInsertWithNameReference(isStatic bool, nameIndex uint64, value string) error {
	var name string
	if isStatic {
		f, err := staticLookup(nameIndex)
		if err != nil {
			return err
		}
		name = f.Name
	} else {
		// Dynamic name references on the encoder stream are relative
		// to the current insert count.
		if nameIndex >= d.table.insertCount {
			return ErrDynamicEntryNotFound
		}
		f, err := d.table.lookupAbsolute(d.table.insertCount - nameIndex)
		if err != nil {
			return err
		}
		name = f.Name
	}
	return d.insertEntry(HeaderField{Name: name, Value: value})
}

func (d *Decoder) OnInsertWithoutNameReference(name, value string) error {
	return d.insertEntry(HeaderField{Name: name, Value: value})
}

func (d *Decoder) OnDuplicate(relIndex uint64) error {
	if relIndex >= d.table.insertCount {
		return ErrDynamicEntryNotFound
	}
	f, err := d.table.lookupAbsolute(d.table.insertCount - relIndex)
	if err != nil {
		return err
	}
	return d.insertEntry(f)
}

func (d *Decoder) OnSetDynamicTableCapacity(capacity uint64) error {
	return d.table.setCapacity(capacity)
}

func (d *Decoder) insertEntry(f HeaderField) error {
	if _, err := d.table.insert(f, noEvictionBound); err != nil {
		return err
	}
	d.unblockSatisfied()
	return nil
}

// unblockSatisfied resumes, in the order they blocked, every
// accumulator whose Required Insert Count is now reached.
func (d *Decoder) unblockSatisfied() {
	for i := 0; i < len(d.blocked); {
		acc := d.blocked[i]
		if acc.requiredInsertCount > d.table.insertCount {
			i++
			continue
		}
		d.blocked = append(d.blocked[:i], d.blocked[i+1:]...)
		acc.resume()
	}
}

// registerBlocked suspends an accumulator until the table mirror
// reaches its Required Insert Count.
func (d *Decoder) registerBlocked(acc *DecodedHeadersAccumulator) error {
	if uint64(len(d.blocked)) >= d.maxBlockedStreams {
		return ErrTooManyBlockedStreams
	}
	d.blocked = append(d.blocked, acc)
	return nil
}

func (d *Decoder) unregisterBlocked(acc *DecodedHeadersAccumulator) {
	for i, a := range d.blocked {
		if a == acc {
			d.blocked = append(d.blocked[:i], d.blocked[i+1:]...)
			return
		}
	}
}

// onBlockComplete acknowledges a fully decoded header block that used
// required-insert-count synchronization.
func (d *Decoder) onBlockComplete(streamID, requiredInsertCount uint64) {
	if requiredInsertCount == 0 {
		return
	}
	if requiredInsertCount > d.reportedInsertCount {
		d.reportedInsertCount = requiredInsertCount
	}
	d.sender.sendHeaderAcknowledgement(streamID)
}

// onStreamReset releases per-stream decoding state and tells the peer
// so its eviction accounting stays correct.
func (d *Decoder) onStreamReset(acc *DecodedHeadersAccumulator) {
	d.unregisterBlocked(acc)
	d.sender.sendStreamCancellation(acc.streamID)
}

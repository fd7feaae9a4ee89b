package qpack

import (
	"fmt"
	"io"
)

// Encoder stream instructions (RFC 9204, Section 4.3), flowing from
// encoder to decoder:
//
//	1Txxxxxx  Insert With Name Reference (6-bit name index + value)
//	01Hxxxxx  Insert Without Name Reference (5-bit name length)
//	001xxxxx  Set Dynamic Table Capacity (5-bit capacity)
//	000xxxxx  Duplicate (5-bit relative index)

type encoderStreamSender struct {
	w io.Writer
}

func (s *encoderStreamSender) sendInsertWithNameReference(isStatic bool, nameIndex uint64, value string) error {
	var first byte = 0x80
	if isStatic {
		first |= 0x40
	}
	b := appendVarint(nil, first, 6, nameIndex)
	b = appendStringLiteral(b, 0, 7, value)
	_, err := s.w.Write(b)
	return err
}

func (s *encoderStreamSender) sendInsertWithoutNameReference(name, value string) error {
	b := appendStringLiteral(nil, 0x40, 5, name)
	b = appendStringLiteral(b, 0, 7, value)
	_, err := s.w.Write(b)
	return err
}

func (s *encoderStreamSender) sendSetDynamicTableCapacity(capacity uint64) error {
	_, err := s.w.Write(appendVarint(nil, 0x20, 5, capacity))
	return err
}

func (s *encoderStreamSender) sendDuplicate(relIndex uint64) error {
	_, err := s.w.Write(appendVarint(nil, 0, 5, relIndex))
	return err
}

// encoderStreamDelegate receives parsed encoder stream instructions.
// Indices are as carried on the wire: relative to the current insert
// count for dynamic references.
type encoderStreamDelegate interface {
	OnInsertWithNameReference(isStatic bool, nameIndex uint64, value string) error
	OnInsertWithoutNameReference(name, value string) error
	OnDuplicate(relIndex uint64) error
	OnSetDynamicTableCapacity(capacity uint64) error
}

// encoderStreamReceiver incrementally parses the encoder stream.
// Partial instructions stay buffered until more bytes arrive; the
// byte stream is reliable and ordered, so buffering is the only state
// needed.
type encoderStreamReceiver struct {
	buf      []byte
	delegate encoderStreamDelegate
}

func (r *encoderStreamReceiver) decode(data []byte) error {
	r.buf = append(r.buf, data...)
	for len(r.buf) > 0 {
		rest, err := r.decodeOne()
		if err == errNeedMore {
			return nil
		}
		if err != nil {
			return err
		}
		r.buf = rest
	}
	return nil
}

func (r *encoderStreamReceiver) decodeOne() ([]byte, error) {
	b := r.buf
	switch first := b[0]; {
	case first&0x80 != 0:
		isStatic := first&0x40 != 0
		nameIndex, rest, err := readVarint(b, 6)
		if err != nil {
			return nil, err
		}
		value, rest, err := readStringLiteral(rest, 7)
		if err != nil {
			return nil, err
		}
		return rest, r.delegate.OnInsertWithNameReference(isStatic, nameIndex, value)
	case first&0x40 != 0:
		name, rest, err := readStringLiteral(b, 5)
		if err != nil {
			return nil, err
		}
		value, rest, err := readStringLiteral(rest, 7)
		if err != nil {
			return nil, err
		}
		return rest, r.delegate.OnInsertWithoutNameReference(name, value)
	case first&0x20 != 0:
		capacity, rest, err := readVarint(b, 5)
		if err != nil {
			return nil, err
		}
		return rest, r.delegate.OnSetDynamicTableCapacity(capacity)
	default:
		relIndex, rest, err := readVarint(b, 5)
		if err != nil {
			return nil, err
		}
		return rest, r.delegate.OnDuplicate(relIndex)
	}
}

// wrapStreamError distinguishes instruction-level parse failures from
// delegate-reported protocol violations; both are connection-fatal.
func wrapStreamError(stream string, err error) error {
	return fmt.Errorf("%s stream: %w", stream, err)
}

package qpack

import "io"

// Decoder stream instructions (RFC 9204, Section 4.4), flowing from
// decoder back to encoder:
//
//	1xxxxxxx  Header Acknowledgement (7-bit stream ID)
//	01xxxxxx  Stream Cancellation (6-bit stream ID)
//	00xxxxxx  Insert Count Increment (6-bit increment)

type decoderStreamSender struct {
	w io.Writer
}

func (s *decoderStreamSender) sendHeaderAcknowledgement(streamID uint64) error {
	_, err := s.w.Write(appendVarint(nil, 0x80, 7, streamID))
	return err
}

func (s *decoderStreamSender) sendStreamCancellation(streamID uint64) error {
	_, err := s.w.Write(appendVarint(nil, 0x40, 6, streamID))
	return err
}

func (s *decoderStreamSender) sendInsertCountIncrement(increment uint64) error {
	_, err := s.w.Write(appendVarint(nil, 0, 6, increment))
	return err
}

type decoderStreamDelegate interface {
	OnHeaderAcknowledgement(streamID uint64) error
	OnStreamCancellation(streamID uint64) error
	OnInsertCountIncrement(increment uint64) error
}

type decoderStreamReceiver struct {
	buf      []byte
	delegate decoderStreamDelegate
}

func (r *decoderStreamReceiver) decode(data []byte) error {
	r.buf = append(r.buf, data...)
	for len(r.buf) > 0 {
		var (
			v    uint64
			rest []byte
			err  error
		)
		first := r.buf[0]
		switch {
		case first&0x80 != 0:
			v, rest, err = readVarint(r.buf, 7)
			if err == nil {
				err = r.delegate.OnHeaderAcknowledgement(v)
			}
		case first&0x40 != 0:
			v, rest, err = readVarint(r.buf, 6)
			if err == nil {
				err = r.delegate.OnStreamCancellation(v)
			}
		default:
			v, rest, err = readVarint(r.buf, 6)
			if err == nil {
				err = r.delegate.OnInsertCountIncrement(v)
			}
		}
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

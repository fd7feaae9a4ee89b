package qpack

import (
	"golang.org/x/net/http2/hpack"
)

// Prefixed integers and string literals (RFC 9204, Section 4.1; same
// scheme as RFC 7541, Section 5). Values below 2^N-1 fit in the N-bit
// prefix of the first byte; larger values fill the prefix and continue
// in base-128 bytes.

// maxVarintShift bounds the continuation sequence so a malicious peer
// cannot feed an unbounded integer.
const maxVarintShift = 62

// appendVarint appends v with an N-bit prefix. firstByte carries the
// instruction pattern bits above the prefix and must have zero bits in
// the prefix itself.
func appendVarint(b []byte, firstByte byte, prefixLen uint8, v uint64) []byte {
	mask := uint64(1)<<prefixLen - 1
	if v < mask {
		return append(b, firstByte|byte(v))
	}
	b = append(b, firstByte|byte(mask))
	v -= mask
	for v >= 128 {
		b = append(b, 0x80|byte(v&0x7f))
		v >>= 7
	}
	return append(b, byte(v))
}

// readVarint decodes an N-bit-prefixed integer from the front of b and
// returns the remaining bytes. A truncated integer yields errNeedMore
// so callers can buffer and retry.
func readVarint(b []byte, prefixLen uint8) (uint64, []byte, error) {
	if len(b) == 0 {
		return 0, b, errNeedMore
	}
	mask := uint64(1)<<prefixLen - 1
	v := uint64(b[0]) & mask
	b = b[1:]
	if v < mask {
		return v, b, nil
	}
	var shift uint
	for {
		if len(b) == 0 {
			return 0, b, errNeedMore
		}
		if shift > maxVarintShift {
			return 0, b, ErrVarintTooLong
		}
		oct := b[0]
		b = b[1:]
		v += uint64(oct&0x7f) << shift
		shift += 7
		if oct&0x80 == 0 {
			return v, b, nil
		}
	}
}

// appendStringLiteral appends a length-prefixed string, Huffman-coded
// when that is shorter. The H flag occupies the bit directly above the
// length prefix.
func appendStringLiteral(b []byte, firstByte byte, prefixLen uint8, s string) []byte {
	hbit := byte(1) << prefixLen
	if hlen := hpack.HuffmanEncodeLength(s); hlen < uint64(len(s)) {
		b = appendVarint(b, firstByte|hbit, prefixLen, hlen)
		return hpack.AppendHuffmanString(b, s)
	}
	b = appendVarint(b, firstByte, prefixLen, uint64(len(s)))
	return append(b, s...)
}

// readStringLiteral decodes a length-prefixed string from the front of
// b, honoring the H flag of the first byte.
func readStringLiteral(b []byte, prefixLen uint8) (string, []byte, error) {
	if len(b) == 0 {
		return "", b, errNeedMore
	}
	huffman := b[0]&(1<<prefixLen) != 0
	n, rest, err := readVarint(b, prefixLen)
	if err != nil {
		return "", b, err
	}
	if uint64(len(rest)) < n {
		return "", b, errNeedMore
	}
	raw := rest[:n]
	rest = rest[n:]
	if !huffman {
		return string(raw), rest, nil
	}
	s, err := hpack.HuffmanDecodeToString(raw)
	if err != nil {
		return "", rest, ErrHuffmanDecoding
	}
	return s, rest, nil
}

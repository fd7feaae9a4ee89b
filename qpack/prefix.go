package qpack

// Header block prefix (RFC 9204, Section 4.5.1): an 8-bit-prefixed
// Encoded Required Insert Count followed by a sign bit and a
// 7-bit-prefixed Delta Base.

// appendHeaderBlockPrefix writes the prefix for a block that requires
// requiredInsertCount insertions and addresses relative indices
// against base.
func appendHeaderBlockPrefix(b []byte, requiredInsertCount, base, maxEntries uint64) []byte {
	var encoded uint64
	if requiredInsertCount > 0 {
		encoded = requiredInsertCount%(2*maxEntries) + 1
	}
	b = appendVarint(b, 0, 8, encoded)
	if base >= requiredInsertCount {
		return appendVarint(b, 0, 7, base-requiredInsertCount)
	}
	return appendVarint(b, 0x80, 7, requiredInsertCount-base-1)
}

// decodeRequiredInsertCount reverses the modulo encoding of the
// Required Insert Count against the decoder's total insert count
// (RFC 9204, Section 4.5.1.1).
func decodeRequiredInsertCount(encoded, maxEntries, totalInserts uint64) (uint64, error) {
	if encoded == 0 {
		return 0, nil
	}
	fullRange := 2 * maxEntries
	if fullRange == 0 || encoded > fullRange {
		return 0, ErrInvalidRequiredInsertCount
	}
	maxValue := totalInserts + maxEntries
	maxWrapped := maxValue / fullRange * fullRange
	requiredInsertCount := maxWrapped + encoded - 1
	if requiredInsertCount > maxValue {
		if requiredInsertCount <= fullRange {
			return 0, ErrInvalidRequiredInsertCount
		}
		requiredInsertCount -= fullRange
	}
	if requiredInsertCount == 0 {
		return 0, ErrInvalidRequiredInsertCount
	}
	return requiredInsertCount, nil
}

// decodeBase reconstructs the Base from the sign bit and Delta Base.
func decodeBase(requiredInsertCount uint64, sign bool, deltaBase uint64) (uint64, error) {
	if !sign {
		return requiredInsertCount + deltaBase, nil
	}
	if deltaBase >= requiredInsertCount {
		return 0, ErrInvalidBase
	}
	return requiredInsertCount - deltaBase - 1, nil
}

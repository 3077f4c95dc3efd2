package bridge

import (
	"math"
	"unicode/utf8"

	"github.com/woxQAQ/snapc/pkg/protocol"
)

// encodedLen returns the exact UTF-8 length of s, excluding the terminator.
func encodedLen(s string) (int, error) {
	n := 0
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				return 0, &InvalidEncodingError{Kind: protocol.SourceKindText, Offset: i}
			}
		}
		n += utf8.RuneLen(r)
	}
	return n, nil
}

// encodeInto writes s followed by a zero byte into dst and returns the
// number of source bytes written. dst must hold encodedLen(s)+1 bytes.
func encodeInto(dst []byte, s string) int {
	n := 0
	for _, r := range s {
		n += utf8.EncodeRune(dst[n:], r)
	}
	dst[n] = 0
	return n
}

// encodeText measures, encodes and terminates s. The returned buffer is
// n+1 bytes long. It is sized from an exact length pass over s instead of
// the worst case of four bytes per rune plus the terminator, so the encode
// pass must write exactly that many bytes or EncodingMismatchError is
// returned.
func encodeText(s string) (buf []byte, n uint32, err error) {
	length, err := encodedLen(s)
	if err != nil {
		return nil, 0, err
	}
	if uint64(length) >= math.MaxUint32 {
		return nil, 0, &SourceTooLargeError{Size: length}
	}

	buf = make([]byte, length+1)
	if written := encodeInto(buf, s); written != length {
		return nil, 0, &EncodingMismatchError{Expected: length, Actual: written}
	}
	return buf, uint32(length), nil
}

// checkBytes validates raw source bytes before anything is allocated.
func checkBytes(b []byte) (uint32, error) {
	if !utf8.Valid(b) {
		return 0, &InvalidEncodingError{Kind: protocol.SourceKindBytes, Offset: invalidOffset(b)}
	}
	if uint64(len(b)) > math.MaxUint32 {
		return 0, &SourceTooLargeError{Size: len(b)}
	}
	return uint32(len(b)), nil
}

func invalidOffset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return len(b)
}

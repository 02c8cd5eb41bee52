// Package tinycompress writes zlib streams made of stored (uncompressed)
// DEFLATE blocks. The output is readable by any zlib decoder while the
// encoder needs no tables, which keeps it cheap on the MCU.
package tinycompress

import "hash/adler32"

// maxBlock is the largest payload of one stored block.
const maxBlock = 0xFFFF

// Overhead returns how many bytes Store adds to n bytes of input.
func Overhead(n int) int {
	blocks := (n + maxBlock - 1) / maxBlock
	if blocks == 0 {
		blocks = 1
	}
	return 2 + 5*blocks + 4
}

// Store appends the zlib encoding of src to dst.
func Store(dst, src []byte) []byte {
	if cap(dst)-len(dst) < len(src)+Overhead(len(src)) {
		grown := make([]byte, len(dst), len(dst)+len(src)+Overhead(len(src)))
		copy(grown, dst)
		dst = grown
	}
	// CMF: deflate, 32K window. FLG: no dictionary, check bits for CMF.
	dst = append(dst, 0x78, 0x01)
	rest := src
	for {
		n := len(rest)
		final := byte(1)
		if n > maxBlock {
			n = maxBlock
			final = 0
		}
		dst = append(dst, final, byte(n), byte(n>>8), ^byte(n), ^byte(n>>8))
		dst = append(dst, rest[:n]...)
		rest = rest[n:]
		if final == 1 {
			break
		}
	}
	sum := adler32.Checksum(src)
	return append(dst, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
}

/*
File Name:  Padding.go

PKCS#7-style random padding to a standard block size, for traffic-analysis
resistance. See spec §4.1: the smallest block in {256,512,1024,2048} is
chosen such that len(data)+16 <= block; the final byte encodes how many
bytes were appended (including itself), with the rest filled by
cryptographically random bytes rather than a fixed value.
*/

package codec

import "crypto/rand"

// blockSizes are the standard frame sizes padding rounds up to.
var blockSizes = []int{256, 512, 1024, 2048}

const paddingOverhead = 16

// Pad rounds data up to the smallest standard block size that leaves at
// least paddingOverhead bytes of room, appending p-1 random bytes followed
// by the byte p (the total number of bytes appended). If no block is big
// enough, or the padding count itself would not fit in a single byte,
// data is returned unchanged.
func Pad(data []byte) []byte {
	block := optimalBlockSize(len(data))
	if block == 0 {
		return data
	}

	p := block - len(data)
	if p <= 0 || p > 0xFF {
		return data
	}

	out := make([]byte, len(data), block)
	copy(out, data)

	padding := make([]byte, p-1)
	if _, err := rand.Read(padding); err != nil {
		return data
	}

	out = append(out, padding...)
	out = append(out, byte(p))
	return out
}

// Unpad reverses Pad. If the last byte is 0 or exceeds the buffer length,
// the data is treated as not padded and returned unchanged.
func Unpad(data []byte) []byte {
	if len(data) == 0 {
		return data
	}

	p := int(data[len(data)-1])
	if p == 0 || p > len(data) {
		return data
	}

	return data[:len(data)-p]
}

// optimalBlockSize returns the smallest standard block size with enough
// room for the padding overhead, or 0 if dataLen is already too large.
func optimalBlockSize(dataLen int) int {
	for _, b := range blockSizes {
		if dataLen+paddingOverhead <= b {
			return b
		}
	}
	return 0
}

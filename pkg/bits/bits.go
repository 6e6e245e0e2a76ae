package bits

// Bit numbering follows the SD Physical Layer specification: bit 0 is the
// least significant bit of a byte, and for multi-byte registers (CSD, CID,
// OCR) bit 0 is the least significant bit of the LAST byte on the wire.
//
// Example: in a 16-byte CSD, bits [127:126] are the two upper bits of byte 0
// and bits [7:1] are the upper seven bits of byte 15.

// Bit returns a byte with only bit n set (0 to 7).
func Bit(n uint) byte {
	if n > 7 {
		return 0
	}
	return 1 << n
}

// IsSet checks if bit n (0 to 7) of b is set.
func IsSet(b byte, n uint) bool {
	return b&Bit(n) != 0
}

// AnyAbove reports whether any bit strictly above bit n is set.
// AnyAbove(r1, 0) is the "any of bits 1 through 7" test used on R1 responses.
func AnyAbove(b byte, n uint) bool {
	if n >= 7 {
		return false
	}
	return b>>(n+1) != 0
}

// Field extracts bits [high:low] of a big-endian register and returns them
// right-aligned. Fields wider than 32 bits, reversed bounds, or bounds outside
// the register return 0.
func Field(reg []byte, high, low uint) uint32 {
	width := uint(len(reg)) * 8
	if high < low || high >= width || high-low >= 32 {
		return 0
	}

	var v uint32
	for n := high; ; n-- {
		idx := len(reg) - 1 - int(n/8)
		v = v<<1 | uint32(reg[idx]>>(n%8)&1)
		if n == low {
			break
		}
	}
	return v
}

// SetField writes value into bits [high:low] of a big-endian register.
// Bits of value above the field width are ignored.
func SetField(reg []byte, high, low uint, value uint32) {
	width := uint(len(reg)) * 8
	if high < low || high >= width || high-low >= 32 {
		return
	}

	for n := low; n <= high; n++ {
		idx := len(reg) - 1 - int(n/8)
		mask := byte(1) << (n % 8)
		if value>>(n-low)&1 != 0 {
			reg[idx] |= mask
		} else {
			reg[idx] &^= mask
		}
	}
}

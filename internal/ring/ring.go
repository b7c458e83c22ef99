// Package ring implements the identifier space shared by the Chord and
// Pastry subsystems: fixed-width big-endian identifiers, SHA-1 hashing,
// modular arithmetic, the half-open ring interval predicate, and the
// hex-digit access Pastry's prefix routing needs.
package ring

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrInvalidID is returned when a byte slice does not represent a valid
// identifier of a given Space (wrong length, or non-zero padding bits).
var ErrInvalidID = errors.New("invalid id")

// Space defines the identifier space: the set of integers in
// [0, 2^Bits - 1], encoded big-endian in ByteLen bytes.
type Space struct {
	Bits    int // number of bits in the identifier space (e.g. 160 for SHA-1)
	ByteLen int // ceil(Bits / 8)
}

// NewSpace builds a Space for the given bit width. b must be > 0.
func NewSpace(b int) (Space, error) {
	if b <= 0 {
		return Space{}, fmt.Errorf("invalid identifier bits: %d (must be > 0)", b)
	}
	return Space{Bits: b, ByteLen: (b + 7) / 8}, nil
}

// ID is an identifier, stored big-endian (most significant byte first).
type ID []byte

// Zero returns the all-zero identifier for this space.
func (sp Space) Zero() ID {
	return make(ID, sp.ByteLen)
}

func (sp Space) mask(id ID) {
	extraBits := sp.ByteLen*8 - sp.Bits
	if extraBits > 0 {
		id[0] &= byte(0xFF >> extraBits)
	}
}

// HashID derives an identifier from s by taking the SHA-1 digest's most
// significant sp.ByteLen bytes and masking off any unused high bits.
func (sp Space) HashID(s string) ID {
	h := sha1.Sum([]byte(s))
	buf := make(ID, sp.ByteLen)
	if sp.ByteLen <= len(h) {
		copy(buf, h[:sp.ByteLen])
	} else {
		copy(buf[sp.ByteLen-len(h):], h[:])
	}
	sp.mask(buf)
	return buf
}

// IsValidID reports whether id has the right length and no set bits
// outside the configured Bits width.
func (sp Space) IsValidID(id []byte) error {
	if len(id) != sp.ByteLen {
		return ErrInvalidID
	}
	extraBits := sp.ByteLen*8 - sp.Bits
	if extraBits > 0 {
		mask := byte(0xFF << (8 - extraBits))
		if id[0]&mask != 0 {
			return ErrInvalidID
		}
	}
	return nil
}

// ToHexString returns the identifier as a lowercase hex string.
func (x ID) ToHexString() string {
	if x == nil {
		return "<nil>"
	}
	return hex.EncodeToString(x)
}

// ToBigInt interprets the identifier as a non-negative big-endian integer.
func (x ID) ToBigInt() *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).SetBytes(x)
}

// FromHexString parses a hex string into an ID within this space,
// accepting leading zero padding but rejecting values that exceed
// 2^Bits - 1.
func (sp Space) FromHexString(s string) (ID, error) {
	str := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if str == "" {
		return nil, fmt.Errorf("invalid hex string: empty input")
	}
	bt, err := hex.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string %q: %w", s, err)
	}
	if len(bt) > sp.ByteLen {
		leading := bt[:len(bt)-sp.ByteLen]
		for _, b := range leading {
			if b != 0 {
				return nil, fmt.Errorf("value exceeds %d-bit space", sp.Bits)
			}
		}
		bt = bt[len(bt)-sp.ByteLen:]
	}
	id := make(ID, sp.ByteLen)
	copy(id[sp.ByteLen-len(bt):], bt)
	if err := sp.IsValidID(id); err != nil {
		return nil, fmt.Errorf("value exceeds %d-bit space", sp.Bits)
	}
	return id, nil
}

// FromUint64 truncates x to sp.Bits and encodes it big-endian.
func (sp Space) FromUint64(x uint64) ID {
	id := make(ID, sp.ByteLen)
	for i := sp.ByteLen - 1; i >= 0 && x > 0; i-- {
		id[i] = byte(x & 0xFF)
		x >>= 8
	}
	sp.mask(id)
	return id
}

// Cmp compares two identifiers as unsigned big-endian integers.
func (x ID) Cmp(b ID) int { return bytes.Compare(x, b) }

// Equal reports whether x and b have identical contents.
func (x ID) Equal(b ID) bool { return bytes.Equal(x, b) }

// Between reports whether x lies in the circular interval (a, b].
//
// If a == b the interval covers the whole ring. If a < b the interval is
// linear; if a > b it wraps around zero.
func (x ID) Between(a, b ID) bool {
	acmp := a.Cmp(x)
	xbcmp := x.Cmp(b)
	abcmp := a.Cmp(b)

	if abcmp == 0 {
		return true
	}
	if abcmp < 0 {
		return acmp < 0 && xbcmp <= 0
	}
	return acmp < 0 || xbcmp <= 0
}

// AddMod computes (a + b) mod 2^Bits. Used to derive Chord finger-table
// start offsets (n + 2^i mod 2^m).
func (sp Space) AddMod(a, b ID) (ID, error) {
	if err := sp.IsValidID(a); err != nil {
		return nil, fmt.Errorf("invalid ID a: %w", err)
	}
	if err := sp.IsValidID(b); err != nil {
		return nil, fmt.Errorf("invalid ID b: %w", err)
	}
	res := make(ID, sp.ByteLen)
	carry := 0
	for i := sp.ByteLen - 1; i >= 0; i-- {
		sum := int(a[i]) + int(b[i]) + carry
		res[i] = byte(sum & 0xFF)
		carry = sum >> 8
	}
	sp.mask(res)
	return res, nil
}

// PowerOfTwoMod returns 2^exp mod 2^Bits as an ID, used to build the i-th
// Chord finger-table offset.
func (sp Space) PowerOfTwoMod(exp int) ID {
	id := make(ID, sp.ByteLen)
	if exp >= sp.Bits {
		return id
	}
	byteIdx := sp.ByteLen - 1 - exp/8
	bitIdx := uint(exp % 8)
	id[byteIdx] = 1 << bitIdx
	sp.mask(id)
	return id
}

// CWDistance returns the clockwise distance from a to b on the ring,
// i.e. (b - a) mod 2^Bits, as a big.Int in [0, 2^Bits).
func (sp Space) CWDistance(a, b ID) *big.Int {
	mod := new(big.Int).Lsh(big.NewInt(1), uint(sp.Bits))
	d := new(big.Int).Sub(b.ToBigInt(), a.ToBigInt())
	d.Mod(d, mod)
	return d
}

// HexDigitCount returns the number of hex digits needed to represent
// identifiers of this space (Bits / 4, rounded up).
func (sp Space) HexDigitCount() int {
	return (sp.Bits + 3) / 4
}

// HexDigitAt returns the value (0-15) of the hex digit at position i
// (0 = most significant) of the identifier's hex representation.
func (x ID) HexDigitAt(i int) int {
	hexStr := x.ToHexString()
	if i < 0 || i >= len(hexStr) {
		return 0
	}
	v, _ := hexDigitToInt(hexStr[i])
	return v
}

func hexDigitToInt(c byte) (int, error) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), nil
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, nil
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit %q", c)
	}
}

// SharedPrefixLen returns the number of leading hex digits x and y share.
func (x ID) SharedPrefixLen(y ID) int {
	hx, hy := x.ToHexString(), y.ToHexString()
	n := len(hx)
	if len(hy) < n {
		n = len(hy)
	}
	i := 0
	for i < n && hx[i] == hy[i] {
		i++
	}
	return i
}

// DigitCount returns the number of base-2^bitsPerDigit digits needed to
// represent identifiers of this space, used by Pastry to size its
// routing table (rows = DigitCount(b), base = 2^b).
func (sp Space) DigitCount(bitsPerDigit int) int {
	return (sp.Bits + bitsPerDigit - 1) / bitsPerDigit
}

// DigitAt returns the value of the i-th base-2^bitsPerDigit digit of the
// identifier (digit 0 is the most significant), generalizing hex-digit
// access to Pastry's configurable digit width b.
func (x ID) DigitAt(bitsPerDigit, i int) int {
	total := len(x) * 8
	shift := total - (i+1)*bitsPerDigit
	width := bitsPerDigit
	if shift < 0 {
		width += shift
		shift = 0
	}
	if width <= 0 {
		return 0
	}
	v := x.ToBigInt()
	v = new(big.Int).Rsh(v, uint(shift))
	mask := new(big.Int).Lsh(big.NewInt(1), uint(width))
	mask.Sub(mask, big.NewInt(1))
	v.And(v, mask)
	return int(v.Int64())
}

// SharedDigitPrefixLen counts how many leading base-2^bitsPerDigit
// digits x and y share, up to digitCount digits.
func (x ID) SharedDigitPrefixLen(y ID, bitsPerDigit, digitCount int) int {
	i := 0
	for i < digitCount && x.DigitAt(bitsPerDigit, i) == y.DigitAt(bitsPerDigit, i) {
		i++
	}
	return i
}

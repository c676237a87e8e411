package program

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/cosmos/btcutil/base58"
)

const pubkeySize = 32

var (
	ErrTruncated = errors.New("truncated payload")
	ErrInvalid   = errors.New("invalid payload")
)

// Reads little endian, length prefixed fields the way the program serializes them
type reader struct {
	buf []byte
	off int
	err error
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (self *reader) next(n int) []byte {
	if self.err != nil {
		return nil
	}
	if n < 0 || len(self.buf)-self.off < n {
		self.err = ErrTruncated
		return nil
	}
	out := self.buf[self.off : self.off+n]
	self.off += n
	return out
}

func (self *reader) u8() uint8 {
	b := self.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (self *reader) bool() bool {
	v := self.u8()
	if v > 1 && self.err == nil {
		self.err = ErrInvalid
	}
	return v == 1
}

func (self *reader) u32() uint32 {
	b := self.next(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (self *reader) u64() uint64 {
	b := self.next(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (self *reader) i64() int64 {
	return int64(self.u64())
}

func (self *reader) pubkey() string {
	b := self.next(pubkeySize)
	if b == nil {
		return ""
	}
	return base58.Encode(b)
}

// Zero key means "none"
func (self *reader) optionalPubkey() string {
	b := self.next(pubkeySize)
	if b == nil || isZero(b) {
		return ""
	}
	return base58.Encode(b)
}

func (self *reader) string() string {
	n := self.u32()
	if n > math.MaxInt32 {
		self.err = ErrTruncated
		return ""
	}
	b := self.next(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

type writer struct {
	buf []byte
}

func (self *writer) u8(v uint8) {
	self.buf = append(self.buf, v)
}

func (self *writer) bool(v bool) {
	if v {
		self.u8(1)
	} else {
		self.u8(0)
	}
}

func (self *writer) u32(v uint32) {
	self.buf = binary.LittleEndian.AppendUint32(self.buf, v)
}

func (self *writer) u64(v uint64) {
	self.buf = binary.LittleEndian.AppendUint64(self.buf, v)
}

func (self *writer) i64(v int64) {
	self.u64(uint64(v))
}

func (self *writer) pubkey(v string) error {
	if v == "" {
		self.buf = append(self.buf, make([]byte, pubkeySize)...)
		return nil
	}
	b := base58.Decode(v)
	if len(b) != pubkeySize {
		return ErrInvalid
	}
	self.buf = append(self.buf, b...)
	return nil
}

func (self *writer) string(v string) {
	self.u32(uint32(len(v)))
	self.buf = append(self.buf, v...)
}

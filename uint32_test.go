package cdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackUnpack(t *testing.T) {
	var buf [4]byte
	Pack(buf[:], 1)
	assert.Equal(t, [4]byte{0x01, 0x00, 0x00, 0x00}, buf)
	assert.Equal(t, uint32(1), Unpack(buf[:]))
}

func TestPackUnpackPair(t *testing.T) {
	var buf [8]byte
	PackPair(buf[:], 1, 2)
	assert.Equal(t, [8]byte{0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}, buf)

	a, b := UnpackPair(buf[:])
	assert.Equal(t, uint32(1), a)
	assert.Equal(t, uint32(2), b)
}

func TestPackUnpackRoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 255, 256, 0xdeadbeef, 0xffffffff} {
		var buf [4]byte
		Pack(buf[:], v)
		assert.Equal(t, v, Unpack(buf[:]))
	}
}

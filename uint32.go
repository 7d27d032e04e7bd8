package cdb

import "encoding/binary"

// Unpack decodes a little-endian u32 from the first 4 bytes of buf.
func Unpack(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[:4])
}

// Pack encodes v as a little-endian u32 into the first 4 bytes of buf.
func Pack(buf []byte, v uint32) {
	binary.LittleEndian.PutUint32(buf[:4], v)
}

// UnpackPair decodes two consecutive little-endian u32s from the first 8
// bytes of buf.
func UnpackPair(buf []byte) (uint32, uint32) {
	return Unpack(buf[0:4]), Unpack(buf[4:8])
}

// PackPair encodes a, b as two consecutive little-endian u32s into the
// first 8 bytes of buf.
func PackPair(buf []byte, a, b uint32) {
	Pack(buf[0:4], a)
	Pack(buf[4:8], b)
}

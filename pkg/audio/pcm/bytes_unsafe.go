package pcm

import (
	"encoding/binary"
	"math"
	"unsafe"
)

func isAligned(b []byte, size uintptr) bool {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))%size == 0
}

// BytesToFloat32 reinterprets little-endian float32 frames without copying.
// A misaligned b (e.g. a sub-slice of a network buffer) is decoded into a
// new slice instead.
func BytesToFloat32(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	if !isAligned(b, unsafe.Alignof(float32(0))) {
		out := make([]float32, len(b)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
		}
		return out
	}
	ptr := unsafe.SliceData(b)
	return unsafe.Slice((*float32)(unsafe.Pointer(ptr)), len(b)/4)
}

// BytesToInt16 reinterprets little-endian int16 frames without copying;
// a misaligned b is decoded into a new slice.
func BytesToInt16(b []byte) []int16 {
	if len(b) < 2 {
		return nil
	}
	if !isAligned(b, unsafe.Alignof(int16(0))) {
		out := make([]int16, len(b)/2)
		for i := range out {
			out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
		}
		return out
	}
	ptr := unsafe.SliceData(b)
	return unsafe.Slice((*int16)(unsafe.Pointer(ptr)), len(b)/2)
}

func Float32ToBytes(s []float32) []byte {
	if len(s) == 0 {
		return nil
	}
	ptr := unsafe.SliceData(s)
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), len(s)*4)
}

func Int16ToBytes(s []int16) []byte {
	if len(s) == 0 {
		return nil
	}
	ptr := unsafe.SliceData(s)
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), len(s)*2)
}

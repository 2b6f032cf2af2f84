package hallucination

import (
	"crypto/sha1"
	"encoding/hex"
)

type ModelHash [sha1.Size]byte

func hexMustDecodeString(s string) ModelHash {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	var h ModelHash
	if len(b) != len(h) {
		panic("invalid model hash length")
	}
	copy(h[:], b)
	return h
}

var (
	ModelHashMedium  = hexMustDecodeString("fd9727b6e1217c2f614f9b698455c4ffd82463b4")
	ModelHashLargeV3 = hexMustDecodeString("ad82bf6a9043ceed055076d0fd39f5f186ff8062")
)

func CalcModelHash(modelBytes []byte) ModelHash {
	return sha1.Sum(modelBytes)
}

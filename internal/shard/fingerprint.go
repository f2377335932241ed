package shard

import (
	"encoding/binary"
	"hash"
	"math"

	"github.com/OneOfOne/xxhash"
)

// Fingerprint summarizes a stream's shard boundaries — row count and a hash
// of each shard's first and last row — without holding more than one shard
// in memory at a time. Two opens of the same file must produce identical
// fingerprints (spec.md §4.A restartability, §5 ordering guarantees); tests
// use this instead of comparing full shard contents.
func Fingerprint(s Stream) (Digest, error) {
	h := xxhash.New64()
	var totalRows int
	var buf [4]byte
	for {
		sh, ok, err := s.Next()
		if err != nil {
			return Digest{}, err
		}
		if !ok {
			break
		}
		n := sh.Rows()
		totalRows += n
		binary.LittleEndian.PutUint32(buf[:], uint32(n))
		h.Write(buf[:])
		for _, col := range sh.Data {
			if n == 0 {
				continue
			}
			writeFloat(h, col[0])
			writeFloat(h, col[n-1])
		}
	}
	return Digest{Hash: h.Sum64(), Rows: totalRows}, nil
}

func writeFloat(h hash.Hash64, f float32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(f))
	h.Write(buf[:])
}

// Digest is the restartability fingerprint of one pass over a shard stream.
type Digest struct {
	Hash uint64
	Rows int
}

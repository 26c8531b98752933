package storage

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SQLite has no vector type; embeddings are stored as little-endian float32 blobs.
const float32Size = 4

func encodeEmbedding(vector []float32) []byte {
	blob := make([]byte, 0, len(vector)*float32Size)
	for _, v := range vector {
		blob = binary.LittleEndian.AppendUint32(blob, math.Float32bits(v))
	}
	return blob
}

func decodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob)%float32Size != 0 {
		return nil, fmt.Errorf("embedding blob of %d bytes is not a float32 array", len(blob))
	}
	vector := make([]float32, 0, len(blob)/float32Size)
	for off := 0; off < len(blob); off += float32Size {
		vector = append(vector, math.Float32frombits(binary.LittleEndian.Uint32(blob[off:])))
	}
	return vector, nil
}

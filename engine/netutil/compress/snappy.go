package compress

import (
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// NewSnappyCompressor creates a snappy block-format Compressor
func NewSnappyCompressor() Compressor {
	return snappyCompressor{}
}

type snappyCompressor struct{}

func (sc snappyCompressor) Compress(b []byte, c []byte) ([]byte, error) {
	return snappy.Encode(c, b), nil
}

func (sc snappyCompressor) Decompress(c []byte, b []byte) error {
	d, err := snappy.Decode(b, c)
	if err != nil {
		return err
	}
	if len(d) != len(b) {
		return errors.Errorf("snappy: decompressed %d bytes, want %d", len(d), len(b))
	}
	if len(d) > 0 && &d[0] != &b[0] {
		copy(b, d)
	}
	return nil
}

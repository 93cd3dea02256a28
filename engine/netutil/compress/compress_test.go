package compress

import (
	"math/rand"
	"testing"
)

func TestSnappyCompressor(t *testing.T) {
	testCompressor(t, NewSnappyCompressor())
}

func TestFlateCompressor(t *testing.T) {
	testCompressor(t, NewFlateCompressor())
}

func TestDecompressIntoEmptyDestination(t *testing.T) {
	for _, cr := range []Compressor{NewSnappyCompressor(), NewFlateCompressor()} {
		c, err := cr.Compress(nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		if err := cr.Decompress(c, []byte{}); err != nil {
			t.Fatalf("empty decompress failed: %v", err)
		}
	}
}

func testCompressor(t *testing.T, cr Compressor) {
	dataSize := 1024
	for i := 0; i < 8; i++ {
		b := make([]byte, dataSize)
		for j := 0; j < dataSize; j++ {
			b[j] = byte(97 + rand.Intn(10))
		}

		var c []byte
		var err error
		if c, err = cr.Compress(b, c); err != nil {
			t.Fatal(err)
		}

		t.Logf("original size is %d, compressed size is %d (%d%%)", len(b), len(c), len(c)*100/len(b))

		rb := make([]byte, len(b))
		if err = cr.Decompress(c, rb); err != nil {
			t.Fatal(err)
		}

		if string(rb) != string(b) {
			t.Errorf("original data and restored data mismatch at size %d", len(b))
		}

		dataSize = dataSize * 2
	}
}

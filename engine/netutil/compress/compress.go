package compress

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/brickhost/brickd/engine/bhlog"
)

// Compressor is the interface for payload compressors.
// Compress appends the compressed form of b to c and returns the result;
// Decompress fills b completely with the decompressed form of c.
type Compressor interface {
	Compress(b []byte, c []byte) ([]byte, error)
	Decompress(c []byte, b []byte) error
}

var (
	errNotFullyCompressed = errors.Errorf("not fully compressed")
)

// NewCompressor creates the Compressor of the specified format
func NewCompressor(compressFormat string) Compressor {
	compressFormat = strings.ToLower(compressFormat)
	if compressFormat == "snappy" {
		return NewSnappyCompressor()
	} else if compressFormat == "flate" {
		return NewFlateCompressor()
	}

	bhlog.Panicf("unknown compress format: %s", compressFormat)
	return nil
}

package log

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// compressor wraps a reusable zstd encoder/decoder pair for FileLog record
// bodies. Compression happens below the wire codec: FileLog compresses the
// already-framed Node bytes it is given and decompresses before returning
// them, so nothing above this package ever sees a compressed buffer.
type compressor struct {
	mu      sync.Mutex
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newCompressor() (*compressor, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create zstd encoder: %v", ErrIO, err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("%w: create zstd decoder: %v", ErrIO, err)
	}

	return &compressor{encoder: enc, decoder: dec}, nil
}

func (c *compressor) compress(data []byte) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encoder.EncodeAll(data, nil)
}

func (c *compressor) decompress(data []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd decode: %v", ErrCorrupt, err)
	}
	return out, nil
}

func (c *compressor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.encoder != nil {
		c.encoder.Close()
		c.encoder = nil
	}
	if c.decoder != nil {
		c.decoder.Close()
		c.decoder = nil
	}
	return nil
}

package streaming

import (
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/microsoft/trident/internal/types"
)

// Decompress wraps r in a streaming zstd decoder. Callers must Close the
// result to release the decoder's background goroutines.
func Decompress(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, types.NewError(types.KindIntegrity, "streaming", err)
	}
	return dec.IOReadCloser(), nil
}

package streaming

import (
	"io"
	"os"

	"github.com/microsoft/trident/internal/types"
)

const defaultBlockSize = 4096

// WriteTo streams src into the file opened at devicePath, writing in
// blockSize-multiple chunks and issuing a single Sync at end-of-stream.
func WriteTo(fs types.FS, devicePath string, src io.Reader, blockSize int) (int64, error) {
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}
	f, err := fs.OpenFile(devicePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, types.NewError(types.KindBlockDevice, "streaming", err)
	}
	defer f.Close()

	buf := make([]byte, blockSize)
	var total int64
	for {
		n, rerr := io.ReadFull(src, buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return total, types.NewError(types.KindBlockDevice, "streaming", werr)
			}
			total += int64(n)
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return total, types.NewError(types.KindBlockDevice, "streaming", rerr)
		}
	}
	if err := f.Sync(); err != nil {
		return total, types.NewError(types.KindBlockDevice, "streaming", err)
	}
	return total, nil
}

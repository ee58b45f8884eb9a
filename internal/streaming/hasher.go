package streaming

import (
	"crypto/sha512"
	"hash"
	"io"

	"github.com/opencontainers/go-digest"

	"github.com/microsoft/trident/internal/types"
)

// HashingReader wraps an io.Reader, accumulating a SHA-384 digest of every
// byte read through it so a partition image is verified in the same pass
// that streams it, never a second pass over the data.
type HashingReader struct {
	r io.Reader
	h hash.Hash
}

func NewHashingReader(r io.Reader) *HashingReader {
	return &HashingReader{r: r, h: sha512.New384()}
}

func (h *HashingReader) Read(p []byte) (int, error) {
	n, err := h.r.Read(p)
	if n > 0 {
		h.h.Write(p[:n])
	}
	return n, err
}

// Digest returns the accumulated digest as a go-digest value, printing and
// comparing the same way OCI tooling expects ("sha384:<hex>").
func (h *HashingReader) Digest() digest.Digest {
	return digest.NewDigestFromBytes(digest.SHA384, h.h.Sum(nil))
}

// VerifyDigest reports whether got matches expected, which may be given
// either as a bare hex string (COSI metadata's compressedSha384 field) or a
// full "sha384:<hex>" digest.
func VerifyDigest(got digest.Digest, expected string) error {
	want, err := digest.Parse(expected)
	if err != nil {
		want = digest.NewDigestFromEncoded(digest.SHA384, expected)
	}
	if got != want {
		return types.Errorf(types.KindIntegrity, "streaming", "digest mismatch: got %s, want %s", got, want)
	}
	return nil
}

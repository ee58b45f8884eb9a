// Package cosi reads the COSI archive prefix (marker + metadata document)
// and derives a full-disk layout plan from its embedded GPT header.
package cosi

import (
	"context"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/microsoft/trident/internal/constants"
	"github.com/microsoft/trident/internal/streaming"
	"github.com/microsoft/trident/internal/types"
)

// prefixWindow is generous enough to cover the marker plus a metadata
// document describing a disk with a few dozen partitions. The reader makes
// exactly one fetch of this size; a longer document is not read in full.
const prefixWindow = 256 * 1024

// Reader fetches and verifies a COSI archive's metadata document ahead of
// streaming any partition image.
type Reader struct {
	fetcher streaming.Fetcher
}

func NewReader(fetcher streaming.Fetcher) *Reader {
	return &Reader{fetcher: fetcher}
}

// ReadMetadata fetches the archive prefix, checks the marker, unmarshals the
// metadata document, and verifies it against expectedHash (the out-of-band
// Host Configuration image.metadataHash).
func (r *Reader) ReadMetadata(ctx context.Context, expectedHash string) (*types.CosiMetadata, error) {
	rc, err := r.fetcher.FetchRange(ctx, 0, prefixWindow)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	hr := streaming.NewHashingReader(rc)
	raw, err := io.ReadAll(hr)
	if err != nil {
		return nil, types.NewError(types.KindNetwork, "cosi", err)
	}
	if len(raw) < len(constants.CosiMarker) || string(raw[:len(constants.CosiMarker)]) != constants.CosiMarker {
		return nil, types.Errorf(types.KindIntegrity, "cosi", "archive does not start with the expected COSI marker")
	}

	body := raw[len(constants.CosiMarker):]
	var meta types.CosiMetadata
	if err := yaml.Unmarshal(body, &meta); err != nil {
		return nil, types.NewError(types.KindIntegrity, "cosi", err)
	}

	if expectedHash != "" {
		if err := streaming.VerifyDigest(hr.Digest(), expectedHash); err != nil {
			return nil, err
		}
	}
	return &meta, nil
}

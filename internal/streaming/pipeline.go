package streaming

import (
	"context"
	"io"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"

	"github.com/microsoft/trident/internal/types"
)

// PartitionJob names one partition image to stream out of the archive and
// the block device path it lands on.
type PartitionJob struct {
	Entry      types.CosiImageEntry
	DevicePath string
}

// Pipeline drives the fetch -> hash -> decompress -> write chain across a
// bounded number of partitions concurrently.
type Pipeline struct {
	Fetcher     Fetcher
	FS          types.FS
	Concurrency int
}

// StreamAll runs every job, bounding in-flight partitions to p.Concurrency
// and cancelling the remaining work the moment any one job fails.
func (p *Pipeline) StreamAll(ctx context.Context, jobs []PartitionJob) error {
	pl := pool.New().WithContext(ctx).WithCancelOnError()
	if p.Concurrency > 0 {
		pl = pl.WithMaxGoroutines(p.Concurrency)
	}
	for _, job := range jobs {
		job := job
		pl.Go(func(ctx context.Context) error {
			return p.streamOne(ctx, job)
		})
	}
	return pl.Wait()
}

// streamOne fans the fetched byte range into two concurrent stages — a
// hashing pass over the compressed bytes and a decompress-then-write pass —
// joined by an io.Pipe, so the digest used for verification is computed over
// exactly the bytes fetched, independent of how the writer consumes them.
func (p *Pipeline) streamOne(ctx context.Context, job PartitionJob) error {
	rc, err := p.Fetcher.FetchRange(ctx, job.Entry.Offset, job.Entry.CompressedLength)
	if err != nil {
		return err
	}
	defer rc.Close()

	hr := NewHashingReader(rc)
	pr, pw := io.Pipe()

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := io.Copy(pw, hr)
		if err != nil {
			_ = pw.CloseWithError(err)
			return err
		}
		return pw.Close()
	})
	g.Go(func() error {
		dec, err := Decompress(pr)
		if err != nil {
			_ = pr.CloseWithError(err)
			return err
		}
		defer dec.Close()
		_, err = WriteTo(p.FS, job.DevicePath, dec, 0)
		if err != nil {
			_ = pr.CloseWithError(err)
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	return VerifyDigest(hr.Digest(), job.Entry.CompressedSHA384)
}

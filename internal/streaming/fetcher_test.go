package streaming_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/microsoft/trident/internal/streaming"
)

func TestStreaming(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "streaming suite")
}

var _ = Describe("HTTPFetcher", func() {
	It("streams the requested byte range without buffering it to disk first", func() {
		const body = "0123456789abcdef"
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.ServeContent(w, r, "archive", time.Time{}, newReaderAt(body))
		}))
		defer srv.Close()

		f := streaming.NewHTTPFetcher(srv.URL, time.Second)
		rc, err := f.FetchRange(context.Background(), 4, 6)
		Expect(err).NotTo(HaveOccurred())
		defer rc.Close()

		got, err := io.ReadAll(rc)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(got)).To(Equal("456789"))
	})

	It("resumes from the last delivered byte instead of restarting the whole range", func() {
		const body = "0123456789abcdefghij"
		var reqCount int32

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&reqCount, 1) == 1 {
				// Simulate a connection that dies two bytes into the range.
				w.Header().Set("Content-Range", "bytes 2-11/20")
				w.WriteHeader(http.StatusPartialContent)
				_, _ = w.Write([]byte("23"))
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
				if hj, ok := w.(http.Hijacker); ok {
					if conn, _, err := hj.Hijack(); err == nil {
						_ = conn.Close()
					}
				}
				return
			}
			http.ServeContent(w, r, "archive", time.Time{}, newReaderAt(body))
		}))
		defer srv.Close()

		f := streaming.NewHTTPFetcher(srv.URL, 2*time.Second)
		rc, err := f.FetchRange(context.Background(), 2, 10)
		Expect(err).NotTo(HaveOccurred())
		defer rc.Close()

		got, err := io.ReadAll(rc)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(got)).To(Equal(body[2:12]))
		Expect(atomic.LoadInt32(&reqCount)).To(BeNumerically(">=", 2))
	})

	It("fails when the server does not honor the Range request", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = fmt.Fprint(w, "whole file, no ranges here")
		}))
		defer srv.Close()

		f := streaming.NewHTTPFetcher(srv.URL, 200*time.Millisecond)
		_, err := f.FetchRange(context.Background(), 0, 4)
		Expect(err).To(HaveOccurred())
	})
})

// sectionReader is a minimal io.ReadSeeker over a string, enough for
// http.ServeContent to drive Range requests against in tests.
type sectionReader struct {
	s   string
	pos int64
}

func newReaderAt(s string) io.ReadSeeker { return &sectionReader{s: s} }

func (r *sectionReader) Read(p []byte) (int, error) {
	if r.pos >= int64(len(r.s)) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.pos:])
	r.pos += int64(n)
	return n, nil
}

func (r *sectionReader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.pos + offset
	case io.SeekEnd:
		abs = int64(len(r.s)) + offset
	}
	r.pos = abs
	return abs, nil
}

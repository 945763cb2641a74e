// internal/platform/upstream/compression.go
package upstream

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

const acceptEncoding = "br, gzip"

var (
	gzipReaderPool   = sync.Pool{New: func() interface{} { return new(gzip.Reader) }}
	brotliReaderPool = sync.Pool{New: func() interface{} { return brotli.NewReader(nil) }}
	emptyReader      = strings.NewReader("")
)

// decompressor advertises br/gzip and transparently decodes response bodies. The platform
// APIs answer browser-like clients with brotli, which net/http does not handle itself.
type decompressor struct {
	next http.RoundTripper
}

func newDecompressor(next http.RoundTripper) *decompressor {
	if next == nil {
		next = http.DefaultTransport
	}
	return &decompressor{next: next}
}

func (d *decompressor) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	resp, err := d.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if err := decodeBody(resp); err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return resp, nil
}

// pooledBody closes the decoder, returns it to its pool and closes the wire body.
type pooledBody struct {
	io.Reader
	wire    io.ReadCloser
	release func()
}

func (b *pooledBody) Close() error {
	if b.release != nil {
		b.release()
		b.release = nil
	}
	return b.wire.Close()
}

// decodeBody unwraps Content-Encoding layers in reverse order of application.
func decodeBody(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}
	encodings := resp.Header.Values("Content-Encoding")
	if len(encodings) == 0 {
		return nil
	}

	for i := len(encodings) - 1; i >= 0; i-- {
		switch enc := strings.ToLower(strings.TrimSpace(encodings[i])); enc {
		case "gzip":
			zr := gzipReaderPool.Get().(*gzip.Reader)
			if err := zr.Reset(resp.Body); err != nil {
				gzipReaderPool.Put(zr)
				return fmt.Errorf("gzip: %w", err)
			}
			resp.Body = &pooledBody{Reader: zr, wire: resp.Body, release: func() {
				_ = zr.Reset(emptyReader)
				gzipReaderPool.Put(zr)
			}}
		case "br":
			br := brotliReaderPool.Get().(*brotli.Reader)
			if err := br.Reset(resp.Body); err != nil {
				brotliReaderPool.Put(br)
				return fmt.Errorf("brotli: %w", err)
			}
			resp.Body = &pooledBody{Reader: br, wire: resp.Body, release: func() {
				_ = br.Reset(emptyReader)
				brotliReaderPool.Put(br)
			}}
		case "identity", "":
		default:
			return errors.New("unsupported Content-Encoding: " + enc)
		}
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

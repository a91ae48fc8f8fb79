package httpapi

import (
	"compress/gzip"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/c0deZ3R0/go-playlist-kit/codec"
)

var (
	errDecompressedTooLarge = stderrors.New("decompressed body exceeds maximum size")
	errUnsupportedMedia     = stderrors.New("unsupported media type")
	errUnsupportedEncoding  = stderrors.New("unsupported content encoding")
	errInvalidGzip          = stderrors.New("invalid gzip body")
	errReadBody             = stderrors.New("failed to read request body")
)

// maxDecompressedReader fails once more than limit bytes have been read.
type maxDecompressedReader struct {
	reader   io.Reader
	limit    int64
	consumed int64
}

func (r *maxDecompressedReader) Read(p []byte) (int, error) {
	if r.consumed >= r.limit {
		return 0, errDecompressedTooLarge
	}
	if maxRead := r.limit - r.consumed; int64(len(p)) > maxRead {
		p = p[:maxRead]
	}

	n, err := r.reader.Read(p)
	r.consumed += int64(n)

	if r.consumed >= r.limit && err == nil {
		// At the limit: one more byte means the body is too large.
		var probe [1]byte
		m, perr := r.reader.Read(probe[:])
		if m > 0 {
			return n, errDecompressedTooLarge
		}
		if perr != nil {
			return n, perr
		}
	}
	return n, err
}

// readBody returns the request body after enforcing the compressed and
// decompressed size limits and undoing gzip content encoding.
func readBody(w http.ResponseWriter, r *http.Request, opts *ServerOptions) ([]byte, error) {
	if r.ContentLength > opts.MaxRequestSize {
		return nil, &http.MaxBytesError{Limit: opts.MaxRequestSize}
	}
	limited := http.MaxBytesReader(w, r.Body, opts.MaxRequestSize)

	var (
		reader  io.Reader = limited
		gzipped bool
	)
	switch enc := strings.TrimSpace(strings.ToLower(r.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
		reader = &maxDecompressedReader{reader: limited, limit: min(opts.MaxRequestSize, opts.MaxDecompressedSize)}
	case "gzip":
		gz, err := gzip.NewReader(limited)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidGzip, err)
		}
		defer gz.Close()
		reader = &maxDecompressedReader{reader: gz, limit: opts.MaxDecompressedSize}
		gzipped = true
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedEncoding, enc)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.Is(err, errDecompressedTooLarge) || stderrors.As(err, &maxErr) {
			return nil, err
		}
		if gzipped {
			return nil, fmt.Errorf("%w: %v", errInvalidGzip, err)
		}
		return nil, fmt.Errorf("%w: %v", errReadBody, err)
	}
	return data, nil
}

// batchCodec picks the codec for the request's Content-Type. A missing
// Content-Type means JSON.
func batchCodec(r *http.Request) (codec.Codec, error) {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		c, _ := codec.Get(codec.KindJSON)
		return c, nil
	}
	c, ok := codec.ForContentType(ct)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnsupportedMedia, ct)
	}
	return c, nil
}

package httpapi

import "time"

// ServerOptions configures request limits and response compression.
type ServerOptions struct {
	// MaxRequestSize bounds the request body as sent, compressed or not.
	MaxRequestSize int64
	// MaxDecompressedSize bounds a gzip request body after decompression.
	MaxDecompressedSize int64
	// CompressionEnabled gzips responses for clients that accept it.
	CompressionEnabled bool
	// CompressionThreshold is the smallest response body worth compressing.
	CompressionThreshold int64
	// RequestTimeout bounds the handling of one request. Zero disables it.
	RequestTimeout time.Duration
}

// DefaultServerOptions returns the defaults used by NewHandler.
func DefaultServerOptions() *ServerOptions {
	return &ServerOptions{
		MaxRequestSize:       10 * 1024 * 1024,
		MaxDecompressedSize:  20 * 1024 * 1024,
		CompressionEnabled:   true,
		CompressionThreshold: 1024,
		RequestTimeout:       30 * time.Second,
	}
}

// ServerOption is a function that configures a ServerOptions struct
type ServerOption func(*ServerOptions)

// WithMaxRequestSize sets the maximum allowed size of incoming request bodies
func WithMaxRequestSize(size int64) ServerOption {
	return func(opts *ServerOptions) { opts.MaxRequestSize = size }
}

// WithMaxDecompressedSize sets the maximum allowed size of decompressed request bodies
func WithMaxDecompressedSize(size int64) ServerOption {
	return func(opts *ServerOptions) { opts.MaxDecompressedSize = size }
}

// WithCompression enables or disables response compression
func WithCompression(enabled bool) ServerOption {
	return func(opts *ServerOptions) { opts.CompressionEnabled = enabled }
}

// WithCompressionThreshold sets the minimum size for response compression
func WithCompressionThreshold(size int64) ServerOption {
	return func(opts *ServerOptions) { opts.CompressionThreshold = size }
}

// WithRequestTimeout sets the maximum duration for request processing
func WithRequestTimeout(timeout time.Duration) ServerOption {
	return func(opts *ServerOptions) { opts.RequestTimeout = timeout }
}

func applyServerOptions(opts ...ServerOption) *ServerOptions {
	options := DefaultServerOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}

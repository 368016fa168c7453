// Package blob abstracts the object storage used for uploaded images.
// The server never reads objects back; it stores bytes and hands public
// URLs to clients.
package blob

import "context"

// Store uploads an object and returns its public URL.
type Store interface {
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error)
}

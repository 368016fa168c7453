package middleware

import "net/http"

const (
	// DefaultMaxBodySize bounds JSON request bodies.
	DefaultMaxBodySize int64 = 1 << 20 // 1MB

	// UploadMaxBodySize bounds image uploads.
	UploadMaxBodySize int64 = 10 << 20 // 10MB
)

// RequestSize caps the request body; reads past the cap fail and the
// JSON decoder surfaces the error as a 400/413.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

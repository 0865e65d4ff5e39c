package security

import "net/http"

// BodyLimit caps request payload size. All storefront payloads are small
// JSON bodies, so anything above the limit is rejected outright.
type BodyLimit struct {
	Max int64
}

// Middleware rejects requests whose declared length exceeds the limit with
// HTTP 413 and caps chunked bodies via http.MaxBytesReader, which makes
// handler reads fail once the limit is crossed.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			http.Error(w, "request entity too large", http.StatusRequestEntityTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		next.ServeHTTP(w, r)
	})
}

package httpmw

import (
	"net/http"
)

// DefaultBodyLimit — 10mb, inline-картинки едут в теле JSON.
const DefaultBodyLimit int64 = 10 << 20

// BodyLimit отвечает 413 на заведомо большие тела по Content-Length и
// ограничивает чтение остальных через http.MaxBytesReader.
func BodyLimit(limit int64) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_, _ = w.Write([]byte(`{"error":"Payload too large"}`))
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

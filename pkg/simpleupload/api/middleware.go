package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/cors"

	"github.com/tendant/simple-upload/pkg/simpleupload"
)

// Middleware is a function that wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// CORS lets browsers on origins call the upload endpoint. "*" allows any origin.
func CORS(origins ...string) Middleware {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	})
}

// Recoverer turns a panicking upload hook into the JSON internal error shape.
// The panic and its stack are logged. A nil logger means slog.Default().
func Recoverer(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("upload handler panic", "path", r.URL.Path, "panic", rec, "stack", string(debug.Stack()))
					WriteError(w, r, http.StatusInternalServerError, simpleupload.ErrorInternal, "Internal server error.")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library/internal/app"
	"github.com/ovaphlow/pitchfork/service-library/internal/catalog"
	"github.com/ovaphlow/pitchfork/service-library/internal/importer"
	"github.com/ovaphlow/pitchfork/service-library/internal/loan"
	"github.com/ovaphlow/pitchfork/service-library/internal/person"
	"github.com/ovaphlow/pitchfork/service-library/internal/session"
	"github.com/ovaphlow/pitchfork/service-library/internal/stats"
	"github.com/ovaphlow/pitchfork/service-library/internal/storage"
	"github.com/ovaphlow/pitchfork/service-library/internal/translate"
	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware logs each request at debug level, and at warn when it ends in a 5xx.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			log := logger.Debugw
			if status >= 500 {
				log = logger.Warnw
			}
			log("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware allows the browser client at origin to call the API and
// answers preflight requests.
func CORSMiddleware(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			if origin != "*" {
				h.Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "authorization, content-type")
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RegisterRoutes mounts every endpoint on a standard library ServeMux.
func RegisterRoutes(a *app.App) http.Handler {
	logger := a.Logger
	api := http.NewServeMux()

	api.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		utilities.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	api.HandleFunc("GET /.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		utilities.WriteJSON(w, http.StatusOK, a.Tokens.JWKS())
	})

	signedIn := a.Gate.RequireSession
	patron := func(h http.HandlerFunc) http.Handler { return signedIn(session.RequireCompleteProfile(h)) }
	admin := func(h http.HandlerFunc) http.Handler { return signedIn(session.RequireAdmin(h)) }

	// auth
	auth := session.NewHandler(a.Gate, logger)
	api.HandleFunc("POST /api/auth/register", auth.Register)
	api.HandleFunc("POST /api/auth/login", auth.Login)
	api.HandleFunc("POST /api/auth/refresh", auth.Refresh)
	api.Handle("POST /api/auth/logout", signedIn(http.HandlerFunc(auth.Logout)))
	api.HandleFunc("GET /api/auth/sso/start", auth.SSOStart)
	api.HandleFunc("GET /api/auth/sso/callback", auth.SSOCallback)
	api.Handle("GET /api/session", signedIn(http.HandlerFunc(auth.Current)))
	api.Handle("PUT /api/profile", signedIn(http.HandlerFunc(auth.CompleteProfile)))

	// patron
	books := catalog.NewHandler(a.Catalog, logger, a.Config.Storage.MaxUpload)
	loans := loan.NewHandler(a.Loans, logger)
	api.Handle("GET /api/books", patron(books.Browse))
	api.Handle("GET /api/books/categories", patron(books.Categories))
	api.Handle("POST /api/books/{id}/loans", patron(loans.Request))
	api.Handle("GET /api/loans/mine", patron(loans.Mine))
	api.Handle("POST /api/loans/{id}/return", patron(loans.ReturnMine))

	// admin
	people := person.NewHandler(a.People, logger)
	imports := importer.NewHandler(a.Importer, logger)
	figures := stats.NewHandler(a.Stats, logger)
	api.Handle("GET /api/admin/books", admin(books.AdminList))
	api.Handle("POST /api/admin/books", admin(books.Create))
	api.Handle("PUT /api/admin/books/{id}", admin(books.Update))
	api.Handle("DELETE /api/admin/books/{id}", admin(books.Delete))
	api.Handle("POST /api/admin/books/{id}/cover", admin(books.UploadCover))
	api.Handle("GET /api/admin/users", admin(people.List))
	api.Handle("PUT /api/admin/users/{id}", admin(people.Update))
	api.Handle("DELETE /api/admin/users/{id}", admin(people.Delete))
	api.Handle("POST /api/admin/users/{id}/admin", admin(people.ToggleAdmin))
	api.Handle("GET /api/admin/loans", admin(loans.List))
	api.Handle("POST /api/admin/loans", admin(loans.Create))
	api.Handle("GET /api/admin/loans/available-books", admin(loans.AvailableItems))
	api.Handle("POST /api/admin/loans/{id}/return", admin(loans.Return))
	api.Handle("GET /api/admin/stats", admin(figures.Stats))
	api.Handle("GET /api/admin/dashboard", admin(figures.Dashboard))
	api.Handle("GET /api/admin/import/subjects", admin(imports.Subjects))
	api.Handle("POST /api/admin/import/search", admin(imports.Search))
	api.Handle("POST /api/admin/import/works/{key}", admin(imports.Import))

	// public cover images
	covers := storage.NewHandler(a.Covers, logger)
	api.HandleFunc("GET /storage/covers/{key}", covers.Get)

	// The translation proxy answers its own preflight with its own CORS headers.
	root := http.NewServeMux()
	root.Handle("/functions/v1/translate", translate.NewHandler(a.DeepL, logger, "*"))
	root.Handle("/", CORSMiddleware(a.Config.HTTP.CORSOrigin)(api))

	return LoggingMiddleware(logger)(SecurityHeadersMiddleware()(root))
}

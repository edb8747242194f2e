package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MaxUploadSize limits the multipart body of a table upload.
const MaxUploadSize = 64 << 20

// NewRouter wires the session handlers and returns the chi router.
func NewRouter(s *Session) http.Handler {
	r := chi.NewRouter()

	r.Use(zerologMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	h := &handler{session: s}

	r.Get("/healthz", handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/tables", func(r chi.Router) {
		r.Get("/", h.ListTables)
		r.Post("/", h.UploadTables)
		r.Get("/{name}", h.GetTable)
	})

	r.Route("/api/steps", func(r chi.Router) {
		r.Get("/", h.ListSteps)
		r.Post("/", h.AddStep)
		r.Delete("/{index}", h.DeleteStep)
		r.Put("/{index}/fields", h.SetField)
		r.Put("/{index}/kind", h.SetKind)
		r.Get("/{index}/form", h.Form)
	})

	r.Post("/api/run", h.Run)
	r.Get("/api/run", h.LastRun)
	r.Get("/api/sql", h.SQL)
	r.Get("/api/columns", h.Columns)
	r.Get("/api/definition", h.Definition)

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

package devserver

import (
	"embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

//go:embed docs/doc.json
var swaggerFS embed.FS

// mountSwagger serves the interactive API documentation at /swagger/.
func (s *Server) mountSwagger(r chi.Router) {
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, _ *http.Request) {
		doc, err := swaggerFS.ReadFile("docs/doc.json")
		if err != nil {
			writeError(w, http.StatusInternalServerError, "swagger document unavailable")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	})
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}

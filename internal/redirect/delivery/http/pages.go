package http

import (
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type passwordPage struct {
	Code    string
	Invalid bool
}

type interstitialPage struct {
	DeepLinkURL string
	// DeepLinkHref was checked against script-capable schemes by the resolver.
	DeepLinkHref template.URL
	FallbackURL  string
	TimeoutMs    int64
}

func renderPage(w http.ResponseWriter, logger *zap.Logger, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Options", "DENY")
	w.WriteHeader(status)
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		logger.Error("page render failed", zap.String("template", name), zap.Error(err))
	}
}

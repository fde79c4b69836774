package web

import (
	"embed"
	"github.com/RezaEskandarii/jobcache/client"
	"github.com/RezaEskandarii/jobcache/internal/state"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templateFiles embed.FS

var indexTemplate = template.Must(
	template.New("index.html").
		Funcs(template.FuncMap{"StatusBadgeClass": StatusBadgeClass}).
		ParseFS(templateFiles, "templates/index.html"),
)

type indexData struct {
	Stats    client.ManagerStats
	MaxInput int64
	Prefix   string
	Statuses []state.JobStatus
}

func render(w http.ResponseWriter, data indexData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func StatusBadgeClass(status state.JobStatus) string {
	switch status {
	case state.StatusPending:
		return "badge bg-info"
	case state.StatusProcessing:
		return "badge bg-primary"
	case state.StatusCompleted:
		return "badge bg-success"
	case state.StatusFailed:
		return "badge bg-danger"
	default:
		return "badge bg-light text-dark"
	}
}

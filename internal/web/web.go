// Package web serves the playground page: a single HTML document that calls the stream
// and search endpoints from the browser and plays the result through the relay.
package web

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
	"strconv"
)

//go:embed playground.html
var playgroundHTML string

var playgroundTmpl = template.Must(template.New("playground").Parse(playgroundHTML))

// PageData fills the playground template.
type PageData struct {
	Service     string
	Version     string
	SearchLimit int
}

// Handler renders the playground on GET / and GET /playground.
type Handler struct {
	page []byte
}

// NewHandler renders the page once.
func NewHandler(data PageData) (*Handler, error) {
	var buf bytes.Buffer
	if err := playgroundTmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return &Handler{page: buf.Bytes()}, nil
}

// Routes returns the paths this handler serves.
func (h *Handler) Routes() []string {
	return []string{"GET /{$}", "GET /playground"}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(h.page)))
	w.WriteHeader(http.StatusOK)
	w.Write(h.page)
}

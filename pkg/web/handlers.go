package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fidiego/hardump/pkg/har"
	"github.com/fidiego/hardump/pkg/proxy"
)

type handlers struct {
	engine  *proxy.Engine
	archive *har.Archive
}

func (h *handlers) listExchanges(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, h.engine.Store().All())
}

func (h *handlers) getExchange(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ex := h.engine.Store().Get(id)
	if ex == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	jsonOK(w, ex)
}

func (h *handlers) replayExchange(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ex, err := h.engine.Replay(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	jsonOK(w, ex)
}

func (h *handlers) clearExchanges(w http.ResponseWriter, _ *http.Request) {
	h.engine.Store().Clear()
	w.WriteHeader(http.StatusNoContent)
}

// downloadHAR serves a snapshot of the live archive. The snapshot does
// not consume the one-shot shutdown flush.
func (h *handlers) downloadHAR(w http.ResponseWriter, _ *http.Request) {
	if h.archive == nil {
		http.Error(w, "har recording disabled", http.StatusNotFound)
		return
	}
	doc := h.archive.Snapshot()
	name := fmt.Sprintf("hardump-%s.har", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	_ = enc.Encode(doc)
}

func (h *handlers) getConfig(w http.ResponseWriter, _ *http.Request) {
	upstreams := h.engine.Router().Upstreams()
	type upstreamInfo struct {
		Name   string `json:"name"`
		Prefix string `json:"prefix"`
		Target string `json:"target"`
	}
	infos := make([]upstreamInfo, len(upstreams))
	for i, u := range upstreams {
		infos[i] = upstreamInfo{Name: u.Name, Prefix: u.Prefix, Target: u.Target}
	}
	entries := 0
	if h.archive != nil {
		entries = h.archive.Len()
	}
	jsonOK(w, map[string]interface{}{
		"upstreams":  infos,
		"exchanges":  h.engine.Store().Count(),
		"harEntries": entries,
	})
}

func jsonOK(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/YannKr/jpegforensics/internal/model"
	"github.com/YannKr/jpegforensics/internal/sse"
)

// AnalysisSSE - GET /analyses/{id}/events
//
// Streams progress, done and failed events. An analysis that has already
// finished gets its terminal event immediately.
func (h *Handler) AnalysisSSE(w http.ResponseWriter, r *http.Request) {
	a := h.webLoadAnalysis(w, r)
	if a == nil {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsub := h.SSE.Subscribe(sse.AnalysisTopic(a.ID))
	defer unsub()

	// Send initial keepalive
	fmt.Fprintf(w, ": connected\n\n")

	switch a.State {
	case model.StateCompleted:
		writeEvent(w, sse.Event{Type: "done", Data: fmt.Sprintf(`{"id":%q,"progress":100}`, a.ID)})
		flusher.Flush()
		return
	case model.StateFailed:
		msg, _ := json.Marshal(a.ErrorMessage)
		writeEvent(w, sse.Event{Type: "failed", Data: fmt.Sprintf(`{"id":%q,"error":%s}`, a.ID, msg)})
		flusher.Flush()
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, evt)
			flusher.Flush()
			if evt.Type == "done" || evt.Type == "failed" {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, evt sse.Event) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, evt.Data)
}

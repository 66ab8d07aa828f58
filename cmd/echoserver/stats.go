package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lguibr/actorio/actor"
)

// statsSnapshot reports the reactor and engine side by side, the demo's
// way of showing the two subsystems composing through a shared process:
// ActiveConnections comes from the counter actor's own state (reached
// only by sending it a query message, never by reading it directly from
// another goroutine), ProcessCount comes straight off the Engine.
type statsSnapshot struct {
	ActiveConnections int64 `json:"active_connections"`
	ProcessCount       int64 `json:"process_count"`
}

func statsRouter(engine *actor.Engine, counter *actor.Pid[counterMsg]) http.Handler {
	r := chi.NewRouter()
	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		reply := make(chan int64, 1)
		if err := actor.Send(counter, counterMsg{query: reply}); err != nil {
			http.Error(w, "counter actor unavailable: "+err.Error(), http.StatusServiceUnavailable)
			return
		}

		snapshot := statsSnapshot{ProcessCount: engine.ProcessCount()}
		select {
		case snapshot.ActiveConnections = <-reply:
		case <-time.After(200 * time.Millisecond):
			// The counter actor did not answer in time; report what we
			// have rather than block the HTTP handler indefinitely.
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snapshot)
	})
	return r
}

package main

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// inboundMessage is the wire shape an external channel adapter posts
// for one inbound chat turn.
type inboundMessage struct {
	UserID     string `json:"user_id"`
	SessionID  string `json:"session_id"`
	Channel    string `json:"channel"`
	ScriptName string `json:"script_name"`
	Text       string `json:"text"`
}

func newRouter(app *App) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("POST /v1/bots/{botID}/messages", handleInbound(app))
	return mux
}

func newMetricsRouter() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleInbound is the channel-agnostic inbound-message webhook
// (spec.md §3: a session is "created on first message from a
// channel"). A real deployment fronts this with one adapter per channel
// (Telegram/Discord/Slack/web widget); this endpoint is the common
// landing point every adapter normalizes its payload into.
func handleInbound(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		botID := r.PathValue("botID")
		var msg inboundMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if msg.SessionID == "" || msg.ScriptName == "" {
			http.Error(w, "session_id and script_name are required", http.StatusBadRequest)
			return
		}
		channel := msg.Channel
		if channel == "" {
			channel = "web"
		}
		if err := app.RunInbound(r.Context(), botID, msg.UserID, msg.SessionID, channel, msg.ScriptName, msg.Text); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		sess, ok := app.bus.Get(msg.SessionID)
		if !ok {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		var envelopes []any
	drain:
		for {
			select {
			case env, ok := <-sess.Outbound():
				if !ok {
					break drain
				}
				envelopes = append(envelopes, env)
			default:
				break drain
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"envelopes": envelopes})
	}
}

package main

import (
	"log/slog"
	"net/http"
	"os"

	"wellkit/api/httpapi"
	"wellkit/engine"
	"wellkit/leaderboard"
	"wellkit/realtime"
	"wellkit/wellkit"
)

// A minimal in-memory server for local experimentation:
//
//	curl -X POST 'localhost:8080/users/alice/activities' -d '{"type":"steps","data":{"steps":5000}}'
//	curl 'localhost:8080/users/alice/summary'
//	websocat 'ws://localhost:8080/ws?user=alice'
func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(textHandler))

	hub := realtime.NewHub()
	board := leaderboard.NewTracker(leaderboard.NewSkipList())
	svc := wellkit.New(
		wellkit.WithRealtime(hub),
		wellkit.WithLeaderboard(board),
		wellkit.WithDispatchMode(engine.DispatchAsync),
	)

	handler := httpapi.NewMux(svc, hub, board, httpapi.Options{})

	slog.Info("starting demo server on :8080")

	if err := http.ListenAndServe(":8080", handler); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}

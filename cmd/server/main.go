package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tabletally/internal/api"
	"tabletally/internal/registry"
	"tabletally/internal/ws"
)

func main() {
	allowedOrigins := splitCSV(os.Getenv("TALLY_ALLOWED_ORIGINS"))

	reg := registry.New()
	hub := ws.NewHub(reg, allowedOrigins)
	go hub.Run()

	apiHandler := api.New(hub, reg)

	// WebSocket endpoint
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, w, r)
	})

	http.HandleFunc("/health", apiHandler.HealthHandler)
	http.HandleFunc("/api/stats", apiHandler.StatsHandler)
	http.HandleFunc("/api/rooms", apiHandler.ListRoomsHandler)

	handler := corsMiddleware(http.DefaultServeMux, allowedOrigins)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		// Rooms live in process memory only; participants re-create or
		// re-join after a restart.
		log.Println("Shutting down server...")
		os.Exit(0)
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("🎴 Tabletally relay starting on :%s", port)
	if len(allowedOrigins) > 0 {
		log.Printf("Allowed origins: %s", strings.Join(allowedOrigins, ", "))
	}
	log.Println("Endpoints:")
	log.Println("  - WebSocket: /ws")
	log.Println("  - Health:    GET /health")
	log.Println("  - Stats:     GET /api/stats")
	log.Println("  - Rooms:     GET /api/rooms")

	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

func corsMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(allowedOrigins) > 0 {
			origin = allowedOrigins[0]
			for _, a := range allowedOrigins {
				if a == r.Header.Get("Origin") {
					origin = a
					break
				}
			}
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

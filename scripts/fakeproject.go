// Fakeproject is a stand-in for a hosted project REST endpoint, used to
// exercise the keepalive service locally without real credentials.
//
// Usage:
//
//	go run fakeproject.go -port 8081 -key anon-key
//	go run fakeproject.go -port 8082 -status 503
//	go run fakeproject.go -port 8083 -delay 15s
//
// Register it with a URL pattern that admits localhost, e.g.
// KEEPALIVE_URL_PATTERN='^http://localhost:\d+/?$'.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	key := flag.String("key", "anon-key", "credential expected in the apikey header")
	status := flag.Int("status", http.StatusOK, "status returned to authorized requests")
	delay := flag.Duration("delay", 0, "time to wait before answering")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/", func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		log.Printf("request: id=%s method=%s path=%s from=%s", requestID, r.Method, r.URL.Path, r.RemoteAddr)

		if *delay > 0 {
			select {
			case <-time.After(*delay):
			case <-r.Context().Done():
				log.Printf("request: id=%s abandoned by client", requestID)
				return
			}
		}

		if r.Header.Get("apikey") != *key || r.Header.Get("Authorization") != "Bearer "+*key {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(*status)
		_ = json.NewEncoder(w).Encode(map[string]string{"request_id": requestID})
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("starting fake project on %s (status=%d delay=%s)", addr, *status, *delay)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

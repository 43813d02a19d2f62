// Command ledger is a mock chain-status service for local development. It
// serves the endpoints the persona ledger client consumes, with optional
// simulated latency and failure so degraded-mode behavior can be exercised
// without a real chain.
package main

import (
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const (
	defaultPort      = "8091"
	defaultNetworkID = "persona-dev"
	defaultLatencyMs = "50"
)

var (
	networkID   = getEnv("NETWORK_ID", defaultNetworkID)
	latencyMs   = getEnvInt("LATENCY_MS", defaultLatencyMs)
	failPercent = getEnvInt("FAIL_PERCENT", "0")
	blockHeight atomic.Int64
)

func main() {
	port := getEnv("PORT", defaultPort)
	blockHeight.Store(1_000_000)

	// Advance the chain so repeated status calls look alive.
	go func() {
		for range time.Tick(2 * time.Second) {
			blockHeight.Add(1)
		}
	}()

	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/status", handleStatus)
	http.HandleFunc("/balance/", handleBalance)

	log.Printf("mock ledger starting on port %s (network=%s latency=%dms fail=%d%%)",
		port, networkID, latencyMs, failPercent)

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "mock-ledger",
	})
}

func handleStatus(w http.ResponseWriter, _ *http.Request) {
	if simulate(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"network_id":   networkID,
		"block_height": blockHeight.Load(),
	})
}

// handleBalance derives a stable pseudo-balance from the address so the
// same wallet always sees the same number.
func handleBalance(w http.ResponseWriter, r *http.Request) {
	if simulate(w) {
		return
	}
	address := strings.TrimPrefix(r.URL.Path, "/balance/")
	if address == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address required"})
		return
	}
	var sum int
	for _, c := range address {
		sum += int(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": address,
		"balance": float64(sum%1000) / 10,
	})
}

// simulate applies configured latency and random failures. Returns true
// when the request was failed and already answered.
func simulate(w http.ResponseWriter) bool {
	if latencyMs > 0 {
		time.Sleep(time.Duration(latencyMs) * time.Millisecond)
	}
	if failPercent > 0 && rand.Intn(100) < failPercent {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "simulated outage"})
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key, fallback string) int {
	n, err := strconv.Atoi(getEnv(key, fallback))
	if err != nil {
		log.Fatalf("%s must be an integer: %v", key, err)
	}
	return n
}

// Package main is a minimal HTTP health check binary for use in distroless
// containers. It exits 0 when the facilitywatch /health endpoint returns HTTP
// 200, and 1 otherwise. The port follows FACILITYWATCH_PORT when set.
// Compile with CGO_ENABLED=0 for a fully static binary.
package main

import (
	"net/http"
	"os"
	"time"
)

func main() {
	port := os.Getenv("FACILITYWATCH_PORT")
	if port == "" {
		port = "8080"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://localhost:" + port + "/health")
	if err != nil {
		os.Exit(1)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}

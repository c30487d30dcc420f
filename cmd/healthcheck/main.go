// Command healthcheck is the container health check for sample-gpu-app.
// It exits 0 if GET http://localhost:8080/health answers 200 within five
// seconds and 1 otherwise.
package main

import (
	"context"
	"net/http"
	"os"

	"github.com/kubeadapt/sample-gpu-app/internal/healthcheck"
)

func main() {
	client := &http.Client{Timeout: healthcheck.DefaultTimeout}
	err := healthcheck.Check(context.Background(), client, healthcheck.DefaultURL)
	os.Exit(healthcheck.ExitCode(err))
}

package blackbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	var port int
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	fmt.Sscanf(portStr, "%d", &port)
	return port
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/tests/blackbox/blackbox_test.go
	bbDir := filepath.Dir(thisFile)
	return filepath.Dir(filepath.Dir(bbDir))
}

func buildBinary(t *testing.T) string {
	t.Helper()
	root := projectRootFromThisFile(t)
	outDir := t.TempDir()
	binPath := filepath.Join(outDir, "reflexiad")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/reflexiad")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

// stubRuntime emulates the OpenAI-compatible surface of a local llama.cpp
// server, counting completion calls so caching is observable end to end.
func stubRuntime(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models":
			w.Write([]byte(`{"data":[]}`))
		case "/admin/tier":
			w.WriteHeader(http.StatusOK)
		case "/v1/completions":
			calls++
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{"text": "stub completion", "finish_reason": "stop"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func waitReady(t *testing.T, base string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(base + "/readyz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("daemon never became ready at %s", base)
}

func TestDaemonEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping blackbox test in short mode")
	}
	bin := buildBinary(t)
	backend, calls := stubRuntime(t)
	port := findFreePort(t)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	cmd := exec.Command(bin,
		"--addr", fmt.Sprintf(":%d", port),
		"--backend-url", backend.URL,
		"--model", "llama3:q4_0",
		"--log-level", "error",
	)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})

	waitReady(t, base)

	generate := func() map[string]any {
		body, _ := json.Marshal(map[string]any{"prompt": "hello blackbox", "max_tokens": 8})
		resp, err := http.Post(base+"/generate", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("generate status %d", resp.StatusCode)
		}
		var out map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return out
	}

	first := generate()
	if first["content"] != "stub completion" {
		t.Fatalf("unexpected content: %v", first)
	}
	if cached, _ := first["cached"].(bool); cached {
		t.Fatalf("first response must not be cached: %v", first)
	}

	second := generate()
	if cached, _ := second["cached"].(bool); !cached {
		// the host may be under enough memory pressure to bypass caching;
		// only fail when the backend saw no second call either
		if *calls < 2 {
			t.Fatalf("expected cached response or second backend call: %v", second)
		}
	} else if *calls != 1 {
		t.Fatalf("cached response but %d backend calls", *calls)
	}

	resp, err := http.Get(base + "/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	defer resp.Body.Close()
	var st map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st["state"] != "ready" {
		t.Fatalf("unexpected daemon state: %v", st["state"])
	}
	if _, ok := st["memory"]; !ok {
		t.Fatalf("status missing memory section: %v", st)
	}

	hresp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer hresp.Body.Close()
	if hresp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", hresp.StatusCode)
	}
}

package blackbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) (int, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	cleanup := func() { _ = ln.Close() }
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return port, cleanup
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
	binPath := filepath.Join(t.TempDir(), "imagequeryd")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/imagequeryd")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

// fakeProvider answers chat completions and fetches the image URL it is given,
// the way a real provider would.
type fakeProvider struct {
	mu        sync.Mutex
	imageURL  string
	fetchCode int
	fetchType string
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/chat/completions" {
		http.NotFound(w, r)
		return
	}
	var req struct {
		MaxTokens int `json:"max_tokens"`
		Messages  []struct {
			Content []struct {
				Type     string `json:"type"`
				ImageURL *struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) != 1 || len(req.Messages[0].Content) != 2 {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"malformed request"}`))
		return
	}
	u := req.Messages[0].Content[1].ImageURL.URL
	code, ct := 0, ""
	if resp, err := http.Get(u); err == nil {
		code, ct = resp.StatusCode, resp.Header.Get("Content-Type")
		_ = resp.Body.Close()
	}
	f.mu.Lock()
	f.imageURL, f.fetchCode, f.fetchType = u, code, ct
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":"A tiny red square (max_tokens=%d)."}}]}`, req.MaxTokens)
}

type serverProc struct {
	cmd  *exec.Cmd
	base string // http base URL, e.g. http://127.0.0.1:18080
}

func startServer(t *testing.T, bin string, providerURL string, port int) *serverProc {
	t.Helper()
	workDir := t.TempDir()
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	cmd := exec.Command(bin, "serve",
		"--addr", fmt.Sprintf("127.0.0.1:%d", port),
		"--hosting", "local",
		"--provider", "huggingface",
		"--log-format", "console",
	)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		"HF_API_KEY=test-key",
		"MODEL_NAME=org/vision-model",
		"IMAGEQUERY_INFERENCE_BASE_URL="+providerURL,
		"IMAGEQUERY_MEDIA_DIR="+filepath.Join(workDir, "media"),
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { _ = cmd.Process.Kill(); _ = cmd.Wait() })
	// Wait for healthz
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
	return &serverProc{cmd: cmd, base: base}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func postForm(t *testing.T, url string, image []byte, query *string) (*http.Response, []byte) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if image != nil {
		w, err := mw.CreateFormFile("image", "square.png")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		_, _ = w.Write(image)
	}
	if query != nil {
		_ = mw.WriteField("query", *query)
	}
	_ = mw.Close()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, &body)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func TestBlackbox_Flow(t *testing.T) {
	bin := buildBinary(t)
	provider := &fakeProvider{}
	ps := httptest.NewServer(provider)
	defer ps.Close()
	// Reserve a free port, then release listener before starting the server
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, ps.URL, port)

	resp, err := http.Get(sp.base + "/readyz")
	if err != nil {
		t.Fatalf("/readyz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/readyz %d", resp.StatusCode)
	}

	q := "What colour is it?"
	resp, body := postForm(t, sp.base+"/process-image", pngBytes(t), &q)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/process-image %d %s", resp.StatusCode, string(body))
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("json: %v body=%s", err, string(body))
	}
	if out.Response != "A tiny red square (max_tokens=500)." {
		t.Fatalf("response=%q", out.Response)
	}

	provider.mu.Lock()
	defer provider.mu.Unlock()
	if !strings.HasPrefix(provider.imageURL, sp.base+"/media/uploads/") {
		t.Fatalf("image url %q not under %s/media/uploads/", provider.imageURL, sp.base)
	}
	if provider.fetchCode != http.StatusOK || provider.fetchType != "image/png" {
		t.Fatalf("hosted image fetch: status=%d type=%q", provider.fetchCode, provider.fetchType)
	}
}

func TestBlackbox_ValidationErrors(t *testing.T) {
	bin := buildBinary(t)
	ps := httptest.NewServer(&fakeProvider{})
	defer ps.Close()
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, ps.URL, port)

	resp, body := postForm(t, sp.base+"/process-image", pngBytes(t), nil)
	if resp.StatusCode != http.StatusBadRequest || !bytes.Contains(body, []byte("Both image and query are required")) {
		t.Fatalf("missing query: %d %s", resp.StatusCode, string(body))
	}

	q := "hi"
	resp, body = postForm(t, sp.base+"/process-image", []byte("plain text, not pixels"), &q)
	if resp.StatusCode != http.StatusBadRequest || !bytes.Contains(body, []byte("Invalid image file")) {
		t.Fatalf("invalid image: %d %s", resp.StatusCode, string(body))
	}
}

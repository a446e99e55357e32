//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/normahq/norma/internal/api/handlers"
	"github.com/normahq/norma/internal/api/middleware"
	"github.com/normahq/norma/internal/domain"
	"github.com/normahq/norma/internal/jobs"
	"github.com/normahq/norma/internal/repository"
	"github.com/normahq/norma/internal/server"
	"github.com/normahq/norma/internal/service"
	"github.com/normahq/norma/internal/testutil"
)

const (
	e2eToken  = "e2e-token"
	e2eTenant = "tenant-e2e"
)

// E2ETestEnv holds all resources needed for end-to-end tests.
type E2ETestEnv struct {
	T             *testing.T
	Ctx           context.Context
	PostgresC     *testutil.PostgresContainer
	Pool          *pgxpool.Pool
	ServerURL     string
	ServerCloser  func()
	ReindexWorker *jobs.ReindexWorker
	HTTPClient    *http.Client
}

// hashEmbedder is a deterministic stand-in for the embedding provider. It
// hashes lowercased words into a fixed-dimension bag-of-words vector, so
// identical text embeds identically and overlapping text scores high. Good
// enough to exercise the full retrieval pipeline against real pgvector.
type hashEmbedder struct {
	dims int
}

func (h *hashEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, h.dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,?!:;\"'")
		if word == "" {
			continue
		}
		hsh := fnv.New32a()
		hsh.Write([]byte(word))
		v[int(hsh.Sum32())%h.dims]++
	}
	return domain.NormalizeEmbedding(v), nil
}

func (h *hashEmbedder) Dimensions() int { return h.dims }

// plainTextExtractor treats the uploaded bytes as UTF-8 text so document
// ingestion runs end to end without a pdftotext binary.
type plainTextExtractor struct{}

func (plainTextExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	return string(data), nil
}

// SetupE2EEnv creates a full test environment: pgvector container, migrated
// schema, and the HTTP server wired with real repositories and services.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser, worker := startServer(t, pool, port)

	return &E2ETestEnv{
		T:             t,
		Ctx:           ctx,
		PostgresC:     pgC,
		Pool:          pool,
		ServerURL:     serverURL,
		ServerCloser:  serverCloser,
		ReindexWorker: worker,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources.
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// APIResponse represents a standard API response.
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs an authenticated GET request.
func (e *E2ETestEnv) Get(path string) (*APIResponse, int, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs an authenticated POST request.
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, int, error) {
	return e.doRequest("POST", path, body)
}

// Delete performs an authenticated DELETE request.
func (e *E2ETestEnv) Delete(path string) (*APIResponse, int, error) {
	return e.doRequest("DELETE", path, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, int, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+e2eToken)
	req.Header.Set("Content-Type", "application/json")

	return e.send(req)
}

// PostFile uploads a document as a multipart form.
func (e *E2ETestEnv) PostFile(path, fileName string, content []byte, fields map[string]string) (*APIResponse, int, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, 0, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, 0, err
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, 0, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequest("POST", e.ServerURL+path, &buf)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+e2eToken)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return e.send(req)
}

func (e *E2ETestEnv) send(req *http.Request) (*APIResponse, int, error) {
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to parse response (HTTP %d): %s", resp.StatusCode, respBody)
	}

	return &apiResp, resp.StatusCode, nil
}

func startServer(t *testing.T, pool *pgxpool.Pool, port int) (string, func(), *jobs.ReindexWorker) {
	faqRepo := repository.NewFAQRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	feedbackRepo := repository.NewFeedbackRepository(pool)
	reindexJobRepo := repository.NewReindexJobRepository(pool)

	embedder := &hashEmbedder{dims: 1536}

	ingestionSvc := service.NewIngestionServiceWithUUIDGen(
		faqRepo, documentRepo, chunkRepo, embedder, plainTextExtractor{}, nil,
		&service.DefaultUUIDGenerator{},
	)
	retrievalSvc := service.NewRetrievalService(embedder, chunkRepo)
	sessionMgr := service.NewSessionManager(retrievalSvc, ticketRepo, feedbackRepo)

	cfg := server.RouterConfig{
		AuthValidator:    middleware.NewStaticValidator(map[string]string{e2eToken: e2eTenant}),
		FAQHandler:       handlers.NewFAQHandler(ingestionSvc, reindexJobRepo),
		DocumentHandler:  handlers.NewDocumentHandler(ingestionSvc, nil),
		AssistantHandler: handlers.NewAssistantHandler(sessionMgr),
		AskHandler:       handlers.NewAskHandler(retrievalSvc),
	}

	router := server.NewRouter(cfg)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	worker := jobs.NewReindexWorker(reindexJobRepo, ingestionSvc)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, worker
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

const defaultGraphTimeout = 30 * time.Second

// Graph is the interface to the knowledge graph service. The service
// ingests uploaded documents asynchronously and answers natural language
// queries over the extracted entity graph. All calls are best-effort from
// the store's point of view: the local repository stays authoritative.
type Graph interface {
	InsertDocument(ctx context.Context, name string, content string) error
	Query(ctx context.Context, query string, mode string, topK int) (string, error)
	ListDocuments(ctx context.Context) ([]GraphDoc, error)
	DeleteDocuments(ctx context.Context, ids []string) error
	PipelineBusy(ctx context.Context) (bool, error)
}

// GraphDoc is a document known to the graph service, with its current
// processing status (processed, processing, pending, failed).
type GraphDoc struct {
	ID       string
	FilePath string
	Status   string
	Summary  string
}

type GraphClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type GraphOption func(*GraphClient)

func WithGraphAPIKey(key string) GraphOption {
	return func(g *GraphClient) {
		g.apiKey = key
	}
}

func WithGraphTimeout(d time.Duration) GraphOption {
	return func(g *GraphClient) {
		g.client.Timeout = d
	}
}

func NewGraph(baseURL string, opts ...GraphOption) (*GraphClient, error) {
	if baseURL == "" {
		return nil, goerr.New("graph service URL is required")
	}

	g := &GraphClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultGraphTimeout},
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

type uploadResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (g *GraphClient) InsertDocument(ctx context.Context, name string, content string) error {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return goerr.Wrap(err, "failed to build upload form")
	}
	if _, err := part.Write([]byte(content)); err != nil {
		return goerr.Wrap(err, "failed to write upload form")
	}
	if err := form.Close(); err != nil {
		return goerr.Wrap(err, "failed to close upload form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/documents/upload", &buf)
	if err != nil {
		return goerr.Wrap(err, "failed to create upload request")
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	g.setAuth(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to upload document", goerr.V("name", name))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return goerr.Wrap(err, "failed to read upload response")
	}
	if resp.StatusCode >= 400 {
		return goerr.New("graph service rejected upload",
			goerr.V("status", resp.StatusCode), goerr.V("body", string(payload)))
	}

	var out uploadResponse
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &out); err != nil {
			return goerr.Wrap(err, "failed to parse upload response")
		}
	}
	if out.Status == "failure" {
		return goerr.New("graph service failed to accept document",
			goerr.V("name", name), goerr.V("message", out.Message))
	}

	return nil
}

type graphQueryRequest struct {
	Query        string `json:"query"`
	Mode         string `json:"mode"`
	TopK         int    `json:"top_k,omitempty"`
	ResponseType string `json:"response_type,omitempty"`
}

func (g *GraphClient) Query(ctx context.Context, query string, mode string, topK int) (string, error) {
	req := graphQueryRequest{Query: query, Mode: mode, TopK: topK}

	var out struct {
		Response string `json:"response"`
	}
	if err := g.do(ctx, http.MethodPost, "/query", req, &out); err != nil {
		return "", err
	}

	return out.Response, nil
}

type graphDocEntry struct {
	ID             string `json:"id"`
	FilePath       string `json:"file_path"`
	ContentSummary string `json:"content_summary"`
}

func (g *GraphClient) ListDocuments(ctx context.Context) ([]GraphDoc, error) {
	var out struct {
		Statuses map[string][]graphDocEntry `json:"statuses"`
	}
	if err := g.do(ctx, http.MethodGet, "/documents", nil, &out); err != nil {
		return nil, err
	}

	var docs []GraphDoc
	for status, entries := range out.Statuses {
		for _, e := range entries {
			docs = append(docs, GraphDoc{
				ID:       e.ID,
				FilePath: e.FilePath,
				Status:   status,
				Summary:  e.ContentSummary,
			})
		}
	}

	return docs, nil
}

func (g *GraphClient) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	req := map[string]any{
		"doc_ids":     ids,
		"delete_file": true,
	}

	var out struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := g.do(ctx, http.MethodDelete, "/documents/delete_document", req, &out); err != nil {
		return err
	}

	switch out.Status {
	case "", "success", "deletion_started":
		return nil
	default:
		return goerr.New("graph document deletion rejected",
			goerr.V("status", out.Status), goerr.V("message", out.Message))
	}
}

func (g *GraphClient) PipelineBusy(ctx context.Context) (bool, error) {
	var out struct {
		Busy bool `json:"busy"`
	}
	if err := g.do(ctx, http.MethodGet, "/documents/pipeline_status", nil, &out); err != nil {
		return false, err
	}

	return out.Busy, nil
}

func (g *GraphClient) do(ctx context.Context, method string, path string, body any, out any) error {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return goerr.Wrap(err, "failed to marshal graph request")
		}
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, buf)
	if err != nil {
		return goerr.Wrap(err, "failed to create graph request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	g.setAuth(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to call graph service", goerr.V("path", path))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return goerr.Wrap(err, "failed to read graph response", goerr.V("path", path))
	}
	if resp.StatusCode >= 400 {
		return goerr.New("graph service returned error",
			goerr.V("status", resp.StatusCode),
			goerr.V("path", path),
			goerr.V("body", string(payload)))
	}

	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return goerr.Wrap(err, "failed to parse graph response", goerr.V("path", path))
		}
	}

	return nil
}

func (g *GraphClient) setAuth(req *http.Request) {
	if g.apiKey != "" {
		req.Header.Set("X-API-Key", g.apiKey)
	}
}

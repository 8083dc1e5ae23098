package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bhasha/internal/catalog"
	"bhasha/internal/testsupport"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func doJSON(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(recorder.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestContributeAndContent(t *testing.T) {
	d := newTestDaemon(t)
	handler := d.api.handler()

	resp := doJSON(t, handler, http.MethodPost, "/api/contribute", map[string]any{
		"type":     "cultural",
		"title":    "Chhath rituals",
		"content":  "Notes on the festival",
		"language": "hi",
		"tags":     []string{"festival"},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("contribute: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, resp, &created)
	if created.ID <= 0 {
		t.Fatalf("expected id, got %d", created.ID)
	}

	resp = doJSON(t, handler, http.MethodGet, "/api/content?language=hi&search=chhath", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("content: expected 200, got %d", resp.Code)
	}
	var listing struct {
		Items []struct {
			ID       int64  `json:"id"`
			Title    string `json:"title"`
			Language string `json:"language"`
		} `json:"items"`
	}
	decodeBody(t, resp, &listing)
	if len(listing.Items) != 1 || listing.Items[0].ID != created.ID {
		t.Fatalf("unexpected listing %+v", listing)
	}
}

func TestContributeRejectsUnknownType(t *testing.T) {
	d := newTestDaemon(t)
	handler := d.api.handler()

	resp := doJSON(t, handler, http.MethodPost, "/api/contribute", map[string]any{
		"type":     "video",
		"title":    "Clip",
		"language": "hi",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestContributeRejectsMissingTitle(t *testing.T) {
	d := newTestDaemon(t)
	handler := d.api.handler()

	resp := doJSON(t, handler, http.MethodPost, "/api/contribute", map[string]any{
		"type":     "language-data",
		"language": "hi",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func multipartUpload(t *testing.T, fields map[string]string, filename, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	header["Content-Type"] = []string{contentType}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestUploadStoresAndCatalogs(t *testing.T) {
	d := newTestDaemon(t)
	handler := d.api.handler()

	body, contentType := multipartUpload(t, map[string]string{
		"type":         "image",
		"languageCode": "ta",
		"contentId":    "12",
		"title":        "Kolam",
	}, "kolam.jpg", "image/jpeg", []byte("jpeg bytes"))

	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var result struct {
		ID          int64  `json:"id"`
		URL         string `json:"url"`
		Pathname    string `json:"pathname"`
		ContentType string `json:"contentType"`
		Size        int64  `json:"size"`
	}
	decodeBody(t, recorder, &result)
	if !strings.HasPrefix(result.Pathname, "cultural/ta/12/kolam-") {
		t.Fatalf("unexpected pathname %q", result.Pathname)
	}
	if result.ContentType != "image/jpeg" || result.Size != int64(len("jpeg bytes")) {
		t.Fatalf("unexpected result %+v", result)
	}

	rec, err := d.store.GetByID(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec == nil || rec.Type != catalog.TypeImage {
		t.Fatalf("expected cataloged image, got %+v", rec)
	}
}

func TestUploadWithoutFile(t *testing.T) {
	d := newTestDaemon(t)
	handler := d.api.handler()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("type", "image")
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	d := newTestDaemon(t)
	handler := d.api.handler()

	body, contentType := multipartUpload(t, map[string]string{
		"type":         "document",
		"languageCode": "hi",
	}, "tool.exe", "application/x-msdownload", []byte("MZ"))

	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestMediaListAndDelete(t *testing.T) {
	d := newTestDaemon(t)
	handler := d.api.handler()

	body, contentType := multipartUpload(t, map[string]string{
		"type":         "audio",
		"languageCode": "hi",
	}, "clip.webm", "audio/webm", []byte("audio"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d", recorder.Code)
	}
	var uploaded struct {
		URL string `json:"url"`
	}
	decodeBody(t, recorder, &uploaded)

	resp := doJSON(t, handler, http.MethodGet, "/api/media?prefix=audio/", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("media list: expected 200, got %d", resp.Code)
	}
	var listing struct {
		Objects []struct {
			URL      string `json:"url"`
			Pathname string `json:"pathname"`
		} `json:"objects"`
	}
	decodeBody(t, resp, &listing)
	if len(listing.Objects) != 1 {
		t.Fatalf("expected one object, got %d", len(listing.Objects))
	}

	resp = doJSON(t, handler, http.MethodDelete, "/api/media", map[string]string{"url": uploaded.URL})
	if resp.Code != http.StatusOK {
		t.Fatalf("media delete: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, handler, http.MethodDelete, "/api/media", map[string]string{})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing url, got %d", resp.Code)
	}
}

func TestAnalyticsEndpoint(t *testing.T) {
	d := newTestDaemon(t)
	handler := d.api.handler()

	resp := doJSON(t, handler, http.MethodPost, "/api/contribute", map[string]any{
		"type":     "language-data",
		"title":    "Word list",
		"content":  "rice, water, sun",
		"language": "bn",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("contribute: expected 200, got %d", resp.Code)
	}

	resp = doJSON(t, handler, http.MethodGet, "/api/analytics", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("analytics: expected 200, got %d", resp.Code)
	}
	var rollup struct {
		Summary struct {
			Contributions      int64 `json:"contributions"`
			LanguagesSupported int   `json:"languagesSupported"`
		} `json:"summary"`
		Trend     []any `json:"trend"`
		Languages []any `json:"languages"`
	}
	decodeBody(t, resp, &rollup)
	if rollup.Summary.Contributions != 1 || rollup.Summary.LanguagesSupported != 1 {
		t.Fatalf("unexpected summary %+v", rollup.Summary)
	}
	if len(rollup.Trend) == 0 || len(rollup.Languages) != 1 {
		t.Fatalf("unexpected rollup shape trend=%d languages=%d", len(rollup.Trend), len(rollup.Languages))
	}
}

func TestChatEndpointStreamsAndLogs(t *testing.T) {
	d := newTestDaemon(t)
	handler := d.api.handler()

	resp := doJSON(t, handler, http.MethodPost, "/api/chat", map[string]any{
		"language": "hi",
		"messages": []map[string]string{{"role": "user", "content": "Namaste"}},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("chat: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "Hindi") {
		t.Fatalf("unexpected chat body %q", resp.Body.String())
	}

	resp = doJSON(t, handler, http.MethodGet, "/api/analytics", nil)
	var rollup struct {
		Summary struct {
			Conversations int64 `json:"conversations"`
		} `json:"summary"`
	}
	decodeBody(t, resp, &rollup)
	if rollup.Summary.Conversations != 1 {
		t.Fatalf("expected logged conversation, got %d", rollup.Summary.Conversations)
	}
}

func TestChatRejectsEmptyMessages(t *testing.T) {
	d := newTestDaemon(t)
	handler := d.api.handler()

	resp := doJSON(t, handler, http.MethodPost, "/api/chat", map[string]any{
		"language": "hi",
		"messages": []map[string]string{},
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	d := newTestDaemon(t)
	handler := d.api.handler()

	resp := doJSON(t, handler, http.MethodGet, "/api/status", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var status Status
	decodeBody(t, resp, &status)
	if status.Running {
		t.Fatal("daemon was never started")
	}
	if status.CatalogDBPath == "" || status.MediaDir == "" {
		t.Fatalf("expected paths populated, got %+v", status)
	}
}

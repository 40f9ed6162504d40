package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/calderadev/doc-convert/internal/config"
	"github.com/calderadev/doc-convert/internal/services"
)

type memQuota struct {
	mu     sync.Mutex
	counts map[string]int
}

func (q *memQuota) Admit(ctx context.Context, userID string, freeLimit int) (bool, int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.counts == nil {
		q.counts = make(map[string]int)
	}
	if q.counts[userID] >= freeLimit {
		return false, 0, nil
	}
	q.counts[userID]++
	return true, q.counts[userID], nil
}

type stubRecognizer struct {
	text string
	err  error
}

func (r *stubRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	return r.text, r.err
}

type stubOffice struct {
	pdf []byte
	err error
}

func (f *stubOffice) Convert(ctx context.Context, inputPath, outDir string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	out := filepath.Join(outDir, "converted.pdf")
	if err := os.WriteFile(out, f.pdf, 0o600); err != nil {
		return "", err
	}
	return out, nil
}

func newTestApp(t *testing.T, rec services.Recognizer, office services.DocumentConverter) *fiber.App {
	t.Helper()

	cfg := config.Load()
	cfg.MaxUploadBytes = 1024 * 1024 // 1MB ceiling keeps oversize fixtures small

	orch := services.NewOrchestrator(
		&memQuota{},
		3,
		services.NewWorkspaceManager(t.TempDir()),
		rec,
		services.NewAssembler(),
		office,
		cfg.MaxUploadBytes,
	)
	h := New(cfg, orch)

	// Mirrors the production server config so the body limit and error
	// handler behave exactly as in cmd/server.
	app := fiber.New(fiber.Config{
		ErrorHandler: NewErrorHandler(cfg.MaxUploadBytes),
		BodyLimit:    cfg.BodyLimit(),
	})
	app.Get("/health", Health)
	app.Get("/status", Health)
	app.Post("/ocr/image-to-pdf", h.ImageToPDF)
	app.Post("/convert/word", h.WordToPDF)
	app.Post("/convert/excel", h.ExcelToPDF)
	return app
}

func smallPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for x := 0; x < 50; x++ {
		for y := 0; y < 50; y++ {
			img.Set(x, y, color.RGBA{R: 10, G: 120, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func textPDF(t *testing.T) []byte {
	t.Helper()
	doc := services.NewAssembler().NewDocument()
	doc.AddTextPage("converted")
	out, err := doc.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	return out
}

// multipartBody builds a multipart/form-data body with one optional file
// part and arbitrary plain fields.
func multipartBody(t *testing.T, filename, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	if filename != "" {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		header.Set("Content-Type", contentType)
		part, err := w.CreatePart(header)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return body, w.FormDataContentType()
}

func doRequest(t *testing.T, app *fiber.App, path string, body *bytes.Buffer, contentType string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, &stubRecognizer{text: "x"}, &stubOffice{})

	for _, path := range []string{"/health", "/status"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
		if m := decodeJSON(t, resp); m["ok"] != true {
			t.Fatalf("%s body = %v", path, m)
		}
	}
}

func TestImageToPDFRequiresUser(t *testing.T) {
	app := newTestApp(t, &stubRecognizer{text: "x"}, &stubOffice{})

	body, ct := multipartBody(t, "scan.png", "image/png", smallPNG(t), map[string]string{"mode": "A"})
	resp := doRequest(t, app, "/ocr/image-to-pdf", body, ct)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if m := decodeJSON(t, resp); m["error"] == "" {
		t.Fatal("expected error message")
	}
}

func TestImageToPDFRequiresFile(t *testing.T) {
	app := newTestApp(t, &stubRecognizer{text: "x"}, &stubOffice{})

	body, ct := multipartBody(t, "", "", nil, map[string]string{"mode": "A", "user_id": "u1"})
	resp := doRequest(t, app, "/ocr/image-to-pdf", body, ct)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestImageToPDFSuccessModeA(t *testing.T) {
	app := newTestApp(t, &stubRecognizer{text: "hello"}, &stubOffice{})

	body, ct := multipartBody(t, "scan.png", "image/png", smallPNG(t), map[string]string{"mode": "A", "user_id": "u1"})
	resp := doRequest(t, app, "/ocr/image-to-pdf", body, ct)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("content-type = %q", got)
	}
	if got := resp.Header.Get("Content-Disposition"); !strings.HasPrefix(got, "attachment") {
		t.Fatalf("content-disposition = %q", got)
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	n, err := api.PageCount(bytes.NewReader(pdf), nil)
	if err != nil || n != 1 {
		t.Fatalf("page count = %d (%v), want 1", n, err)
	}
}

func TestImageToPDFSuccessModeB(t *testing.T) {
	app := newTestApp(t, &stubRecognizer{text: "hello"}, &stubOffice{})

	body, ct := multipartBody(t, "scan.png", "image/png", smallPNG(t), map[string]string{"mode": "B", "user_id": "u1"})
	resp := doRequest(t, app, "/ocr/image-to-pdf", body, ct)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	n, err := api.PageCount(bytes.NewReader(pdf), nil)
	if err != nil || n != 2 {
		t.Fatalf("page count = %d (%v), want 2", n, err)
	}
}

func TestImageToPDFQuotaLimit(t *testing.T) {
	app := newTestApp(t, &stubRecognizer{text: "hello"}, &stubOffice{})

	for i := 0; i < 3; i++ {
		body, ct := multipartBody(t, "scan.png", "image/png", smallPNG(t), map[string]string{"mode": "A", "user_id": "u1"})
		resp := doRequest(t, app, "/ocr/image-to-pdf", body, ct)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("call %d status = %d, want 200", i+1, resp.StatusCode)
		}
	}

	body, ct := multipartBody(t, "scan.png", "image/png", smallPNG(t), map[string]string{"mode": "A", "user_id": "u1"})
	resp := doRequest(t, app, "/ocr/image-to-pdf", body, ct)

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("4th call status = %d, want 403", resp.StatusCode)
	}
	m := decodeJSON(t, resp)
	msg, _ := m["error"].(string)
	if !strings.Contains(msg, "3") {
		t.Fatalf("limit message should name the limit, got %q", msg)
	}
}

func TestImageToPDFRecognizerFailure(t *testing.T) {
	app := newTestApp(t, &stubRecognizer{err: services.ErrRecognizerUnavailable}, &stubOffice{})

	body, ct := multipartBody(t, "scan.png", "image/png", smallPNG(t), map[string]string{"mode": "A", "user_id": "u1"})
	resp := doRequest(t, app, "/ocr/image-to-pdf", body, ct)

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}

func TestConvertWordRejectsUnsupportedExtension(t *testing.T) {
	app := newTestApp(t, &stubRecognizer{}, &stubOffice{pdf: textPDF(t)})

	body, ct := multipartBody(t, "notes.txt", "text/plain", []byte("hello"), nil)
	resp := doRequest(t, app, "/convert/word", body, ct)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	m := decodeJSON(t, resp)
	if m["ok"] != false {
		t.Fatalf("body should carry ok:false, got %v", m)
	}
	msg, _ := m["error"].(string)
	for _, ext := range []string{".doc", ".docx", ".rtf"} {
		if !strings.Contains(msg, ext) {
			t.Fatalf("message should list %s, got %q", ext, msg)
		}
	}
}

func TestConvertWordOversizeUpload(t *testing.T) {
	app := newTestApp(t, &stubRecognizer{}, &stubOffice{pdf: textPDF(t)})

	// Uploads between the ceiling and the server body limit must get the
	// validator's 413, not a bare server rejection. 2.5MB against the 1MB
	// ceiling mirrors a 25MB upload against the default 20MB ceiling.
	big := bytes.Repeat([]byte("a"), 2*1024*1024+512*1024)
	body, ct := multipartBody(t, "big.docx", "application/octet-stream", big, nil)
	resp := doRequest(t, app, "/convert/word", body, ct)

	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", resp.StatusCode)
	}
	m := decodeJSON(t, resp)
	msg, _ := m["error"].(string)
	if !strings.Contains(msg, "1MB") {
		t.Fatalf("message should name the MB ceiling, got %q", msg)
	}
}

func TestErrorHandlerNamesCeilingOnBodyLimit(t *testing.T) {
	// Bodies over the server limit never reach a route handler; Fiber
	// hands the rejection to the app error handler, which must still
	// name the configured ceiling.
	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(20 * 1024 * 1024)})
	app.Post("/convert/word", func(c *fiber.Ctx) error {
		return fiber.ErrRequestEntityTooLarge
	})

	req := httptest.NewRequest(http.MethodPost, "/convert/word", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", resp.StatusCode)
	}
	m := decodeJSON(t, resp)
	msg, _ := m["error"].(string)
	if !strings.Contains(msg, "20MB") {
		t.Fatalf("message should name the MB ceiling, got %q", msg)
	}
}

func TestBodyLimitSitsWellAboveCeiling(t *testing.T) {
	cfg := config.Load()
	cfg.MaxUploadBytes = 20 * 1024 * 1024

	// A 25MB upload plus multipart framing must fit under the server
	// limit so the validator stays the authority on oversize files.
	if int64(cfg.BodyLimit()) < 25*1024*1024+1024 {
		t.Fatalf("BodyLimit() = %d, leaves no room above the ceiling", cfg.BodyLimit())
	}
}

func TestConvertWordSuccess(t *testing.T) {
	fixture := textPDF(t)
	app := newTestApp(t, &stubRecognizer{}, &stubOffice{pdf: fixture})

	body, ct := multipartBody(t, "report.docx", "application/octet-stream", []byte("stub"), nil)
	resp := doRequest(t, app, "/convert/word", body, ct)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pdf, fixture) {
		t.Fatal("response body should be the converter output")
	}
}

func TestConvertExcelConverterFailure(t *testing.T) {
	app := newTestApp(t, &stubRecognizer{}, &stubOffice{
		err: &services.ConverterError{
			Reason: services.ConverterTimeout,
			Output: "soffice killed",
			Err:    errors.New("killed after 120s"),
		},
	})

	body, ct := multipartBody(t, "data.xlsx", "application/octet-stream", []byte("stub"), nil)
	resp := doRequest(t, app, "/convert/excel", body, ct)

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	m := decodeJSON(t, resp)
	if m["ok"] != false {
		t.Fatalf("body should carry ok:false, got %v", m)
	}
	if msg, _ := m["error"].(string); strings.Contains(msg, "soffice killed") {
		t.Fatal("internal diagnostics must not leak to the caller")
	}
}

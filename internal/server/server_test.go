package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/constants"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core"
	coreasync "github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core/async"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/repository"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/utils"
)

const invoiceText = `Tax Invoice GSTIN : 07AABCI2726B1Z4 Number : DL1252605AJ43633 Date : 01-May-2025 ` +
	`PNR : CZFDFS Flight No : 6E - 5269 From : DEL To : BLR Place of Supply : Maharashtra ` +
	`Grand Total 11,598.00 388.00 11,986.00 580.00 0.00 0.00 0.00 12,566.00`

func init() {
	gin.SetMode(gin.TestMode)
}

// textRenderer treats uploads starting with "pdf:" as rendered text.
type textRenderer struct{}

func (textRenderer) Render(_ context.Context, data []byte) entity.RenderResult {
	text, ok := strings.CutPrefix(string(data), "pdf:")
	if !ok {
		return entity.RenderResult{Error: "Failed to parse PDF: not a PDF"}
	}
	return entity.RenderResult{Success: true, Text: text, Pages: []entity.Page{{PageNumber: 1, Text: text}}}
}

func openStore(t *testing.T) (*repository.DB, repository.SessionRepository, repository.InvoiceRepository) {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: repository.DriverSQLite}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db, repository.NewSessionRepository(db, nil), repository.NewInvoiceRepository(db, nil)
}

func dialBufconn(t *testing.T, register func(*grpc.Server)) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestInvoiceService_GRPC(t *testing.T) {
	ctx := context.Background()
	_, sessions, invoices := openStore(t)
	proc := core.NewProcessor(nil, textRenderer{}, nil, core.WithStore(sessions, invoices))
	res, err := proc.ProcessBatch(ctx, "ops@example.com", []entity.FileInput{{Name: "a.pdf", Data: []byte("pdf:" + invoiceText)}})
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}

	conn := dialBufconn(t, func(s *grpc.Server) {
		hs := health.NewServer()
		healthpb.RegisterHealthServer(s, hs)
		hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		RegisterInvoiceServiceServer(s, NewInvoiceService(nil, NewSessions(sessions, nil), nil))
	})
	client := NewInvoiceClient(conn)

	t.Run("health", func(t *testing.T) {
		resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			t.Errorf("status = %v, want SERVING", resp.GetStatus())
		}
	})

	t.Run("extract text", func(t *testing.T) {
		req, _ := structpb.NewStruct(map[string]any{"text": invoiceText, "fileName": "a.pdf"})
		out, err := client.ExtractText(ctx, req)
		if err != nil {
			t.Fatalf("ExtractText() error = %v", err)
		}
		var inv entity.ExtractedInvoice
		if err := utils.FromStruct(out, &inv); err != nil {
			t.Fatalf("FromStruct() error = %v", err)
		}
		if inv.PNR != "CZFDFS" || inv.GrandTotal != 12566 || inv.FileName != "a.pdf" {
			t.Errorf("invoice = %+v", inv)
		}
	})

	t.Run("extract text rejects bad input", func(t *testing.T) {
		for _, fields := range []map[string]any{
			{"text": "  "},
			{"text": invoiceText, "fileName": "../etc/a.pdf"},
		} {
			req, _ := structpb.NewStruct(fields)
			_, err := client.ExtractText(ctx, req)
			if status.Code(err) != codes.InvalidArgument {
				t.Errorf("ExtractText(%v) code = %v, want InvalidArgument", fields, status.Code(err))
			}
		}
	})

	t.Run("summarize", func(t *testing.T) {
		req, err := utils.ToPBInvoices(res.Invoices)
		if err != nil {
			t.Fatal(err)
		}
		out, err := client.Summarize(ctx, req)
		if err != nil {
			t.Fatalf("Summarize() error = %v", err)
		}
		stats := out.GetFields()["stats"].GetStructValue().GetFields()
		if got := stats["totalInvoices"].GetNumberValue(); got != 1 {
			t.Errorf("totalInvoices = %v, want 1", got)
		}
		if got := stats["totalAmount"].GetNumberValue(); got != 12566 {
			t.Errorf("totalAmount = %v, want 12566", got)
		}
		if out.GetFields()["report"] == nil {
			t.Error("report missing")
		}
	})

	t.Run("get session", func(t *testing.T) {
		req, _ := structpb.NewStruct(map[string]any{"sessionId": res.Session.SessionID.String()})
		out, err := client.GetSession(ctx, req)
		if err != nil {
			t.Fatalf("GetSession() error = %v", err)
		}
		var view SessionView
		if err := utils.FromStruct(out, &view); err != nil {
			t.Fatalf("FromStruct() error = %v", err)
		}
		if view.State != coreasync.StateDone || view.Summary == nil || view.Summary.TotalAmount != 12566 {
			t.Errorf("view = %+v", view)
		}
	})

	t.Run("get session errors", func(t *testing.T) {
		tests := []struct {
			id   string
			want codes.Code
		}{
			{"", codes.InvalidArgument},
			{"not-a-uuid", codes.InvalidArgument},
			{uuid.NewString(), codes.NotFound},
		}
		for _, tt := range tests {
			req, _ := structpb.NewStruct(map[string]any{"sessionId": tt.id})
			_, err := client.GetSession(ctx, req)
			if status.Code(err) != tt.want {
				t.Errorf("GetSession(%q) code = %v, want %v", tt.id, status.Code(err), tt.want)
			}
		}
	})
}

func multipartBody(t *testing.T, email string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if email != "" {
		_ = w.WriteField("email", email)
	}
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		content, ok := files[name]
		if !ok {
			continue
		}
		part, err := w.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write([]byte(content))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return body, w.FormDataContentType()
}

type testAPI struct {
	handler http.Handler
	queue   *coreasync.BatchQueue
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()
	db, sessions, invoices := openStore(t)
	proc := core.NewProcessor(nil, textRenderer{}, nil, core.WithStore(sessions, invoices))
	queue := coreasync.NewBatchQueue(proc, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		queue.Shutdown(ctx)
	})
	h := NewHTTPHandler(HTTPDeps{
		Processor: proc,
		Queue:     queue,
		Sessions:  NewSessions(sessions, queue),
		DB:        db,
	})
	return testAPI{handler: h, queue: queue}
}

func (a testAPI) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func TestHTTP_Health(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("GET /health = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestHTTP_Extract(t *testing.T) {
	api := newTestAPI(t)
	body, ct := multipartBody(t, "ops@example.com", map[string]string{
		"a.pdf": "pdf:" + invoiceText,
		"b.pdf": "garbage",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", body)
	req.Header.Set("Content-Type", ct)

	rec := api.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/v1/extract = %d %s", rec.Code, rec.Body.String())
	}
	var got struct {
		SessionID string                    `json:"sessionId"`
		Summary   entity.SessionSummary     `json:"summary"`
		Invoices  []entity.ExtractedInvoice `json:"invoices"`
		Files     []entity.FileRecord       `json:"files"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Summary.NumberOfFiles != 2 || got.Summary.SuccessRate != 50 || got.Summary.UserEmail != "ops@example.com" {
		t.Errorf("summary = %+v", got.Summary)
	}
	if len(got.Invoices) != 1 || got.Invoices[0].PNR != "CZFDFS" {
		t.Errorf("invoices = %+v", got.Invoices)
	}
	if len(got.Files) != 2 || got.Files[1].Status != constants.FileStatusError {
		t.Errorf("files = %+v", got.Files)
	}
}

func TestHTTP_ExtractRejectsBadRequests(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	if rec := api.do(req); rec.Code != http.StatusBadRequest {
		t.Errorf("non-multipart = %d, want 400", rec.Code)
	}

	body, ct := multipartBody(t, "ops@example.com", nil)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/extract", body)
	req.Header.Set("Content-Type", ct)
	if rec := api.do(req); rec.Code != http.StatusBadRequest {
		t.Errorf("no files = %d, want 400", rec.Code)
	}

	body, ct = multipartBody(t, "not-an-email", map[string]string{"a.pdf": "pdf:" + invoiceText})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/extract", body)
	req.Header.Set("Content-Type", ct)
	if rec := api.do(req); rec.Code != http.StatusBadRequest {
		t.Errorf("bad email = %d, want 400", rec.Code)
	}
}

func TestHTTP_BatchLifecycle(t *testing.T) {
	api := newTestAPI(t)
	body, ct := multipartBody(t, "ops@example.com", map[string]string{
		"a.pdf": "pdf:" + invoiceText,
		"c.pdf": "pdf:" + invoiceText,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", body)
	req.Header.Set("Content-Type", ct)

	rec := api.do(req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST /api/v1/batches = %d %s", rec.Code, rec.Body.String())
	}
	var accepted struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Header().Get("Location") != "/api/v1/sessions/"+accepted.SessionID {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}

	var view SessionView
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = api.do(httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+accepted.SessionID, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET session = %d %s", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if view.State == coreasync.StateDone || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if view.State != coreasync.StateDone {
		t.Fatalf("state = %s, want done", view.State)
	}
	if view.Summary == nil || view.Summary.NumberOfFiles != 2 || view.Summary.TotalAmount != 25132 {
		t.Errorf("summary = %+v", view.Summary)
	}
	if view.Progress == nil || view.Progress.Percentage != 100 {
		t.Errorf("progress = %+v", view.Progress)
	}
}

func TestHTTP_SessionNotFound(t *testing.T) {
	api := newTestAPI(t)
	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/sessions/not-a-uuid", http.StatusBadRequest},
		{"/api/v1/sessions/" + uuid.NewString(), http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec := api.do(httptest.NewRequest(http.MethodGet, tt.path, nil)); rec.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestHTTP_Export(t *testing.T) {
	api := newTestAPI(t)
	payload := `{"invoices":[{"documentType":"Invoice","pnr":"CZFDFS","grandTotal":12566,"fileName":"a.pdf"}]}`

	tests := []struct {
		name     string
		format   string
		wantCode int
		wantType string
	}{
		{"csv", "csv", http.StatusOK, "text/csv; charset=utf-8"},
		{"xlsx", "xlsx", http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"unknown", "pdf", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/export?format="+tt.format, strings.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			rec := api.do(req)
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantType == "" {
				return
			}
			if ct := rec.Header().Get("Content-Type"); ct != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", ct, tt.wantType)
			}
			if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "invoice_data_") || !strings.Contains(cd, "."+tt.format) {
				t.Errorf("Content-Disposition = %q", cd)
			}
			if tt.format == "csv" && !strings.Contains(rec.Body.String(), "CZFDFS") {
				t.Errorf("csv body = %q", rec.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/export", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	if rec := api.do(req); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body = %d, want 400", rec.Code)
	}
}

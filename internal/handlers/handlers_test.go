package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xelth-com/spectraq/internal/ai"
	"github.com/xelth-com/spectraq/internal/config"
	"github.com/xelth-com/spectraq/internal/history"
	"github.com/xelth-com/spectraq/internal/inspection"
	"github.com/xelth-com/spectraq/internal/plant"
	"github.com/xelth-com/spectraq/internal/services/inspector"
	"github.com/xelth-com/spectraq/internal/services/report"
	"github.com/xelth-com/spectraq/internal/storage"
	"github.com/xelth-com/spectraq/internal/utils"
	"github.com/xelth-com/spectraq/internal/video"
)

type stubClassifier struct {
	mu      sync.Mutex
	verdict inspection.Verdict
	err     error
	calls   int
}

func (s *stubClassifier) Classify(ctx context.Context, req ai.ClassifyRequest) (inspection.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.verdict, s.err
}

func (s *stubClassifier) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubAssistant struct {
	answer string
	err    error
	ctx    ai.ChatContext
}

func (s *stubAssistant) Ask(ctx context.Context, question string, c ai.ChatContext) (string, error) {
	s.ctx = c
	return s.answer, s.err
}

func (s *stubAssistant) AskManual(ctx context.Context, errorCode, manual string, c ai.ChatContext) (string, string, error) {
	s.ctx = c
	return "วิธีแก้ " + errorCode, s.answer, s.err
}

type halfRandom struct{}

func (halfRandom) Float64() float64 { return 0.5 }

func rejectVerdict() inspection.Verdict {
	return inspection.Verdict{
		Status:     inspection.StatusReject,
		Confidence: 0.92,
		Defects:    []string{"Scratch"},
		Reasoning:  "visible scratch",
		Severity:   inspection.SeverityMedium,
	}
}

type testEnv struct {
	router     *Router
	store      *history.Store
	classifier *stubClassifier
	assistant  *stubAssistant
	archive    *report.Archive
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}

	store := history.NewStore()
	sensor := inspection.NewSensorSimulator(halfRandom{})
	classifier := &stubClassifier{verdict: rejectVerdict()}
	assistant := &stubAssistant{answer: "ตรวจสอบสายพาน"}
	p := plant.Default()

	reports, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage() error: %v", err)
	}
	archive := report.NewArchive(reports, nil)
	t.Cleanup(archive.Wait)

	r := NewRouter(Deps{
		Config:    cfg,
		Plant:     p,
		Store:     store,
		Sensor:    sensor,
		Inspector: inspector.New(classifier, sensor, store, nil, p),
		Assistant: assistant,
		Renderer:  report.NewRenderer(""),
		Archive:   archive,
		Provider:  "gemini",
	})
	return &testEnv{router: r, store: store, classifier: classifier, assistant: assistant, archive: archive}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error: %v", err)
	}
	return buf.Bytes()
}

// multipartRequest builds a form post; a nil file skips the file part
func multipartRequest(t *testing.T, url string, fields map[string]string, fileField, contentType string, file []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField() error: %v", err)
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="capture"`, fileField))
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart() error: %v", err)
		}
		part.Write(file)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

func TestCreateInspection(t *testing.T) {
	env := newTestEnv(t, nil)

	req := multipartRequest(t, "/api/inspections", map[string]string{
		"inspectionType": "QC_PRODUCT",
		"productType":    "Electronic PCB",
	}, "image", "image/png", pngBytes(t))
	w := env.do(req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var rec inspection.Record
	decode(t, w, &rec)
	if rec.ID != "LOG-1" {
		t.Errorf("ID = %q, want LOG-1", rec.ID)
	}
	if rec.Status != inspection.StatusReject || rec.TicketStatus != inspection.TicketOpen {
		t.Errorf("record = %s/%s", rec.Status, rec.TicketStatus)
	}
	if env.store.Len() != 1 {
		t.Errorf("history len = %d, want 1", env.store.Len())
	}
}

func TestCreateInspection_NoImage(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(multipartRequest(t, "/api/inspections", map[string]string{"inspectionType": "QC_PRODUCT"}, "", "", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if env.classifier.callCount() != 0 {
		t.Error("classifier called without an image")
	}
}

func TestCreateInspection_ModelFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind string
	}{
		{"invalid output", fmt.Errorf("%w: not json", ai.ErrInvalidModelOutput), "invalid_model_output"},
		{"call failed", fmt.Errorf("%w: timeout", ai.ErrModelCall), "model_call"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.classifier.err = tt.err

			w := env.do(multipartRequest(t, "/api/inspections", nil, "image", "image/png", pngBytes(t)))
			if w.Code != http.StatusBadGateway {
				t.Fatalf("status = %d, want 502", w.Code)
			}
			var body map[string]string
			decode(t, w, &body)
			if body["error"] != ai.FailureClassify || body["error_kind"] != tt.kind {
				t.Errorf("body = %v", body)
			}
			if env.store.Len() != 0 {
				t.Error("history changed after a failed classification")
			}
		})
	}
}

func TestListInspections_Filters(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.Append(inspection.Record{ID: "LOG-1", Status: inspection.StatusPass, TicketStatus: inspection.TicketArchived})
	env.store.Append(inspection.Record{ID: "LOG-2", Status: inspection.StatusReject, TicketStatus: inspection.TicketOpen})

	tests := []struct {
		url    string
		status int
		ids    []string
	}{
		{"/api/inspections", http.StatusOK, []string{"LOG-2", "LOG-1"}},
		{"/api/inspections?status=pass", http.StatusOK, []string{"LOG-1"}},
		{"/api/inspections?limit=1", http.StatusOK, []string{"LOG-2"}},
		{"/api/incidents", http.StatusOK, []string{"LOG-2"}},
		{"/api/inspections?status=maybe", http.StatusBadRequest, nil},
		{"/api/inspections?limit=-1", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			w := env.do(httptest.NewRequest(http.MethodGet, tt.url, nil))
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.ids == nil {
				return
			}
			var recs []inspection.Record
			decode(t, w, &recs)
			if len(recs) != len(tt.ids) {
				t.Fatalf("got %d records, want %d", len(recs), len(tt.ids))
			}
			for i, id := range tt.ids {
				if recs[i].ID != id {
					t.Errorf("recs[%d] = %s, want %s", i, recs[i].ID, id)
				}
			}
		})
	}
}

func jsonRequest(method, url, body string) *http.Request {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestTicketLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.Append(inspection.Record{ID: "LOG-1", Status: inspection.StatusReject, TicketStatus: inspection.TicketOpen, InspectorID: inspection.DefaultInspector})

	steps := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"assign technician", jsonRequest(http.MethodPut, "/api/inspections/LOG-1/assign", `{"inspectorId":"T02"}`), http.StatusOK},
		{"assign unknown", jsonRequest(http.MethodPut, "/api/inspections/LOG-1/assign", `{"inspectorId":"T99"}`), http.StatusBadRequest},
		{"resolve", jsonRequest(http.MethodPost, "/api/inspections/LOG-1/resolve", ""), http.StatusOK},
		{"resolve twice", jsonRequest(http.MethodPost, "/api/inspections/LOG-1/resolve", ""), http.StatusConflict},
		{"assign resolved", jsonRequest(http.MethodPut, "/api/inspections/LOG-1/assign", `{"inspectorId":"T01"}`), http.StatusConflict},
		{"unknown record", jsonRequest(http.MethodPost, "/api/inspections/LOG-9/resolve", ""), http.StatusNotFound},
	}

	for _, s := range steps {
		w := env.do(s.req)
		if w.Code != s.status {
			t.Fatalf("%s: status = %d, want %d (%s)", s.name, w.Code, s.status, w.Body.String())
		}
	}

	rec, err := env.store.Get("LOG-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if rec.InspectorID != "T02" || rec.TicketStatus != inspection.TicketResolved {
		t.Errorf("record = %s/%s", rec.InspectorID, rec.TicketStatus)
	}
}

func TestOperatorRoutesRequireToken(t *testing.T) {
	const secret = "line-4-secret"
	env := newTestEnv(t, &config.Config{JWTSecret: secret})
	env.store.Append(inspection.Record{ID: "LOG-1", Status: inspection.StatusReject, TicketStatus: inspection.TicketOpen})

	w := env.do(jsonRequest(http.MethodPost, "/api/inspections/LOG-1/resolve", ""))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("without token: status = %d, want 401", w.Code)
	}

	token, err := utils.GenerateOperatorToken("T01", "Somchai Engineering", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateOperatorToken() error: %v", err)
	}
	req := jsonRequest(http.MethodPost, "/api/inspections/LOG-1/resolve", "")
	req.Header.Set("Authorization", "Bearer "+token)
	if w := env.do(req); w.Code != http.StatusOK {
		t.Fatalf("with token: status = %d, body %s", w.Code, w.Body.String())
	}

	// reads stay open
	if w := env.do(httptest.NewRequest(http.MethodGet, "/api/inspections/LOG-1", nil)); w.Code != http.StatusOK {
		t.Errorf("GET status = %d, want 200", w.Code)
	}
}

func TestExportReport(t *testing.T) {
	env := newTestEnv(t, nil)

	missing := env.do(multipartRequest(t, "/api/reports", nil, "", "", nil))
	if missing.Code != http.StatusBadRequest || !strings.Contains(missing.Body.String(), "Missing report payload") {
		t.Errorf("missing payload: %d %s", missing.Code, missing.Body.String())
	}

	invalid := env.do(multipartRequest(t, "/api/reports", map[string]string{"payload": `{"data":{"id":"LOG-3"}}`}, "", "", nil))
	if invalid.Code != http.StatusBadRequest || !strings.Contains(invalid.Body.String(), "Invalid payload") {
		t.Errorf("invalid payload: %d %s", invalid.Code, invalid.Body.String())
	}

	payload := `{"data":{"id":"LOG-3","timestamp":"2026-03-04T05:06:07Z","status":"REJECT","severity":"HIGH","defects":["Crack"],"reasoning":"crack near pin","confidence":0.8},` +
		`"meta":{"project":"Spectra IoT Node 04","inspector":"Wipa Tech"}}`
	w := env.do(multipartRequest(t, "/api/reports", map[string]string{"payload": payload}, "image", "image/png", pngBytes(t)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "QC_Report_2026-03-04_") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if w.Header().Get("X-Report-Path") == "" {
		t.Error("missing X-Report-Path")
	}

	f, err := report.ExtractFindings(w.Body.Bytes())
	if err != nil {
		t.Fatalf("ExtractFindings() error: %v", err)
	}
	if f.RecordID != "LOG-3" || f.Status != inspection.StatusReject || f.Severity != inspection.SeverityHigh {
		t.Errorf("findings = %+v", f)
	}

	env.archive.Wait()
	jobID := w.Header().Get("X-Report-Job")
	jw := env.do(httptest.NewRequest(http.MethodGet, "/api/reports/jobs/"+jobID, nil))
	if jw.Code != http.StatusOK {
		t.Fatalf("job status = %d", jw.Code)
	}
	var state report.JobState
	decode(t, jw, &state)
	if state.Status != report.JobSaved {
		t.Errorf("job status = %s, want SAVED", state.Status)
	}

	if w := env.do(httptest.NewRequest(http.MethodGet, "/api/reports/jobs/nope", nil)); w.Code != http.StatusNotFound {
		t.Errorf("unknown job status = %d, want 404", w.Code)
	}
}

func TestOversizedImageIsRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	big := make([]byte, maxImageUpload+1)

	payload := `{"data":{"id":"LOG-3","status":"REJECT","severity":"HIGH","defects":["Crack"],"reasoning":"crack"},"meta":{"project":"Spectra IoT Node 04"}}`
	tests := []struct {
		name string
		req  *http.Request
	}{
		{"inspection", multipartRequest(t, "/api/inspections", nil, "image", "image/png", big)},
		{"report export", multipartRequest(t, "/api/reports", map[string]string{"payload": payload}, "image", "image/png", big)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(tt.req)
			if w.Code != http.StatusRequestEntityTooLarge {
				t.Errorf("status = %d, want 413", w.Code)
			}
		})
	}
	if env.classifier.callCount() != 0 || env.store.Len() != 0 {
		t.Error("oversized upload reached the pipeline")
	}
}

func TestInspectionReport(t *testing.T) {
	env := newTestEnv(t, nil)

	created := env.do(multipartRequest(t, "/api/inspections", nil, "image", "image/png", pngBytes(t)))
	if created.Code != http.StatusCreated {
		t.Fatalf("create status = %d", created.Code)
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/inspections/LOG-1/report", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	f, err := report.ExtractFindings(w.Body.Bytes())
	if err != nil {
		t.Fatalf("ExtractFindings() error: %v", err)
	}
	if f.RecordID != "LOG-1" || len(f.Defects) != 1 || f.Defects[0] != "Scratch" {
		t.Errorf("findings = %+v", f)
	}

	if w := env.do(httptest.NewRequest(http.MethodGet, "/api/inspections/LOG-7/report", nil)); w.Code != http.StatusNotFound {
		t.Errorf("unknown record status = %d, want 404", w.Code)
	}
}

func TestChat(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.Append(inspection.Record{ID: "LOG-1", Status: inspection.StatusReject, Defects: []string{"Dent"}})

	w := env.do(jsonRequest(http.MethodPost, "/api/chat", `{"question":"ปัญหาหลักคืออะไร"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ChatResponse
	decode(t, w, &resp)
	if !resp.Success || resp.Answer != "ตรวจสอบสายพาน" {
		t.Errorf("response = %+v", resp)
	}
	if env.assistant.ctx.Total != 1 || len(env.assistant.ctx.RecentLogs) != 1 || env.assistant.ctx.RecentLogs[0].Defect != "Dent" {
		t.Errorf("chat context = %+v", env.assistant.ctx)
	}
	if len(env.assistant.ctx.Technicians) != 3 {
		t.Errorf("technicians = %v", env.assistant.ctx.Technicians)
	}

	if w := env.do(jsonRequest(http.MethodPost, "/api/chat", `{"question":"  "}`)); w.Code != http.StatusBadRequest {
		t.Errorf("empty question status = %d, want 400", w.Code)
	}

	env.assistant.err = errors.New("quota")
	failed := env.do(jsonRequest(http.MethodPost, "/api/chat", `{"question":"status?"}`))
	if failed.Code != http.StatusBadGateway {
		t.Fatalf("failure status = %d, want 502", failed.Code)
	}
	decode(t, failed, &resp)
	if resp.Success || resp.Answer != ai.FailureChat {
		t.Errorf("failure response = %+v", resp)
	}
}

func TestChatManual(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(jsonRequest(http.MethodPost, "/api/chat/manual", `{"errorCode":"e-104"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp ChatResponse
	decode(t, w, &resp)
	if !strings.Contains(resp.Question, "E-104") {
		t.Errorf("question = %q", resp.Question)
	}

	if w := env.do(jsonRequest(http.MethodPost, "/api/chat/manual", `{"errorCode":"E-999"}`)); w.Code != http.StatusNotFound {
		t.Errorf("unknown code status = %d, want 404", w.Code)
	}
}

func TestMonitoringEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.Append(inspection.Record{ID: "LOG-1", Status: inspection.StatusPass, Temperature: 50, Noise: 70})

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	var m history.Metrics
	decode(t, w, &m)
	if m.Total != 1 || m.PassRate != "100.0" {
		t.Errorf("metrics = %+v", m)
	}

	if w := env.do(httptest.NewRequest(http.MethodGet, "/api/metrics?trend=0", nil)); w.Code != http.StatusBadRequest {
		t.Errorf("trend=0 status = %d, want 400", w.Code)
	}

	mw := env.do(httptest.NewRequest(http.MethodGet, "/api/monitor", nil))
	var view MonitorView
	decode(t, mw, &view)
	if view.Latest == nil || view.Latest.ID != "LOG-1" {
		t.Errorf("latest = %+v", view.Latest)
	}
	if view.Sensor.Temperature != 45 || view.Session != nil {
		t.Errorf("monitor = %+v", view)
	}

	tw := env.do(httptest.NewRequest(http.MethodGet, "/api/technicians", nil))
	var techs []plant.Technician
	decode(t, tw, &techs)
	if len(techs) != 3 {
		t.Errorf("technicians = %d, want 3", len(techs))
	}

	aw := env.do(httptest.NewRequest(http.MethodPost, "/api/alerts/test", nil))
	if aw.Code != http.StatusOK || !strings.Contains(aw.Body.String(), "ทดสอบเสียงเตือน") {
		t.Errorf("test alert = %d %s", aw.Code, aw.Body.String())
	}
}

type sliceSource struct {
	mu      sync.Mutex
	frames  [][]byte
	cleaned bool
	cleanup func() error
}

func (s *sliceSource) Next(ctx context.Context) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil, false, nil
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, true, nil
}

func (s *sliceSource) Close() error {
	s.mu.Lock()
	s.cleaned = true
	s.mu.Unlock()
	return s.cleanup()
}

func TestVideo_Unavailable(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(multipartRequest(t, "/api/video", nil, "video", "video/mp4", []byte("mp4")))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestVideo_SamplesUpload(t *testing.T) {
	env := newTestEnv(t, nil)

	uploads, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var src *sliceSource
	env.router.Uploads = uploads
	env.router.Videos = video.NewManager(ctx, 5*time.Millisecond)
	env.router.Clips = func(ctx context.Context, path string, cleanup func() error) (video.FrameSource, error) {
		src = &sliceSource{frames: [][]byte{pngBytes(t), pngBytes(t)}, cleanup: cleanup}
		return src, nil
	}

	w := env.do(multipartRequest(t, "/api/video", map[string]string{"inspectionType": "QC_PRODUCT"}, "video", "video/mp4", []byte("fake mp4")))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var info video.Info
	decode(t, w, &info)

	s, err := env.router.Videos.Get(info.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}

	gw := env.do(httptest.NewRequest(http.MethodGet, "/api/video/"+info.ID, nil))
	decode(t, gw, &info)
	if info.Status != video.StatusCompleted || len(info.Records) != 2 {
		t.Fatalf("info = %+v", info)
	}
	if !strings.HasPrefix(info.Records[0], inspection.PrefixVideo+"-") {
		t.Errorf("record id = %q", info.Records[0])
	}
	if !src.cleaned {
		t.Error("source not closed")
	}

	if w := env.do(httptest.NewRequest(http.MethodDelete, "/api/video/unknown", nil)); w.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", w.Code)
	}
}

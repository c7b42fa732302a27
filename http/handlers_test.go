package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"injurywatch/db"
	"injurywatch/ml"
	"injurywatch/monitoring"
	"injurywatch/pipeline"
)

type fakePredictor struct {
	probability float64
	err         error
	block       chan struct{} // non-nil时Predict阻塞直到关闭
	calls       int64
}

func (f *fakePredictor) Predict(ctx context.Context, batch *pipeline.WeeklyBatch) (*ml.PredictionResult, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &ml.PredictionResult{InjuryProbability: f.probability}, nil
}

const csvHeader = "player_id,date,speed_mean,speed_max,speed_std,acc_norm_mean,acc_norm_max,acc_norm_std,gyro_norm_mean,gyro_norm_max"

func csvRow(date string) string {
	return fmt.Sprintf("p1,%s,4.1,8.2,1.3,1.01,3.2,0.4,0.9,2.1", date)
}

func validCSV(dates ...string) string {
	rows := []string{csvHeader}
	for _, d := range dates {
		rows = append(rows, csvRow(d))
	}
	return strings.Join(rows, "\n")
}

func week() []string {
	return []string{"2024-03-01", "2024-03-02", "2024-03-03", "2024-03-04", "2024-03-05", "2024-03-06", "2024-03-07"}
}

func newTestMux(t *testing.T, predictor Predictor) (*http.ServeMux, *monitoring.Presenter) {
	t.Helper()

	// 历史落库在测试里替换为no-op
	savedSave, savedQuery := saveAnalysis, queryAnalyses
	saveAnalysis = func(db.Analysis) error { return nil }
	queryAnalyses = func(int) ([]db.Analysis, error) { return []db.Analysis{}, nil }
	t.Cleanup(func() {
		saveAnalysis, queryAnalyses = savedSave, savedQuery
	})

	presenter := monitoring.NewPresenter(nil)
	handlers := NewHandlers(predictor, presenter, &monitoring.Gate{}, nil)
	mux := http.NewServeMux()
	handlers.Register(mux)
	return mux, presenter
}

func postCSV(mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) analyzeResponse {
	t.Helper()
	var resp analyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response json: %v", err)
	}
	return resp
}

func TestHandleAnalyze_Success(t *testing.T) {
	mux, _ := newTestMux(t, &fakePredictor{probability: 0.62})

	// 日期乱序上传
	dates := []string{"2024-03-04", "2024-03-01", "2024-03-07", "2024-03-02", "2024-03-06", "2024-03-03", "2024-03-05"}
	w := postCSV(mux, validCSV(dates...))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w)

	if len(resp.State.Table) != 7 {
		t.Fatalf("expected 7 table rows, got %d", len(resp.State.Table))
	}
	// 预览表按日期升序，与上传顺序无关
	for i, want := range week() {
		if resp.State.Table[i].DateText != want {
			t.Errorf("table row %d: got %s, want %s", i, resp.State.Table[i].DateText, want)
		}
	}
	if resp.State.Gauge.Label != "High Risk" || resp.State.Gauge.PercentText != "62.0" {
		t.Errorf("unexpected gauge: %+v", resp.State.Gauge)
	}
	if resp.State.Status.Kind != monitoring.StatusSuccess {
		t.Errorf("got status kind %s, want success", resp.State.Status.Kind)
	}
}

func TestHandleAnalyze_MultipartUpload(t *testing.T) {
	mux, _ := newTestMux(t, &fakePredictor{probability: 0.1})

	var buf strings.Builder
	boundary := "testboundary"
	buf.WriteString("--" + boundary + "\r\n")
	buf.WriteString("Content-Disposition: form-data; name=\"file\"; filename=\"week.csv\"\r\n")
	buf.WriteString("Content-Type: text/csv\r\n\r\n")
	buf.WriteString(validCSV(week()...))
	buf.WriteString("\r\n--" + boundary + "--\r\n")

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(buf.String()))
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUploadReader_MultipartClose(t *testing.T) {
	var buf strings.Builder
	boundary := "testboundary"
	buf.WriteString("--" + boundary + "\r\n")
	buf.WriteString("Content-Disposition: form-data; name=\"file\"; filename=\"week.csv\"\r\n")
	buf.WriteString("Content-Type: text/csv\r\n\r\n")
	buf.WriteString(validCSV(week()...))
	buf.WriteString("\r\n--" + boundary + "--\r\n")

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(buf.String()))
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)

	body, err := uploadReader(req)
	if err != nil {
		t.Fatalf("uploadReader failed: %v", err)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "player_id") {
		t.Errorf("unexpected upload content: %q", string(data)[:min(40, len(data))])
	}
	// 临时文件由调用方释放
	if err := body.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}

func TestHandleAnalyze_ValidationFailure(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
	}{
		{
			name:        "wrong session count",
			body:        validCSV("2024-03-01", "2024-03-02", "2024-03-03", "2024-03-04", "2024-03-05", "2024-03-06"),
			wantMessage: "expected exactly 7 session rows, got 6",
		},
		{
			name:        "bad header",
			body:        "a,b,c\n" + csvRow("2024-03-01"),
			wantMessage: "header does not match the required columns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			predictor := &fakePredictor{probability: 0.5}
			mux, presenter := newTestMux(t, predictor)

			w := postCSV(mux, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			resp := decodeResponse(t, w)
			if !strings.Contains(resp.Error, strings.Split(tt.wantMessage, ":")[0]) {
				t.Errorf("error %q does not contain %q", resp.Error, tt.wantMessage)
			}
			if resp.State.Status.Kind != monitoring.StatusError {
				t.Errorf("got status kind %s, want error", resp.State.Status.Kind)
			}
			// 校验失败不能触发预测调用
			if n := atomic.LoadInt64(&predictor.calls); n != 0 {
				t.Errorf("predictor called %d times on invalid input", n)
			}
			// 状态重置为中性
			state := presenter.Snapshot()
			if len(state.Table) != 0 || state.Gauge.Severity != "idle" {
				t.Errorf("state not reset after failure: %+v", state.Gauge)
			}
		})
	}
}

func TestHandleAnalyze_BackendRejected(t *testing.T) {
	predictor := &fakePredictor{err: &ml.BackendError{Status: 400, Message: "bad batch"}}
	mux, _ := newTestMux(t, predictor)

	w := postCSV(mux, validCSV(week()...))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	resp := decodeResponse(t, w)
	if !strings.Contains(resp.Error, "bad batch") {
		t.Errorf("backend error message not surfaced: %q", resp.Error)
	}
}

func TestHandleAnalyze_MalformedResponse(t *testing.T) {
	predictor := &fakePredictor{err: &ml.ResponseError{Reason: "injury_probability is missing"}}
	mux, _ := newTestMux(t, predictor)

	w := postCSV(mux, validCSV(week()...))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestHandleAnalyze_SingleInFlight(t *testing.T) {
	block := make(chan struct{})
	predictor := &fakePredictor{probability: 0.2, block: block}
	mux, _ := newTestMux(t, predictor)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstCode int
	go func() {
		defer wg.Done()
		firstCode = postCSV(mux, validCSV(week()...)).Code
	}()

	// 等第一个请求占住闸门
	for i := 0; i < 100; i++ {
		if atomic.LoadInt64(&predictor.calls) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	second := postCSV(mux, validCSV(week()...))
	if second.Code != http.StatusConflict {
		t.Errorf("expected 409 while busy, got %d", second.Code)
	}

	close(block)
	wg.Wait()
	if firstCode != http.StatusOK {
		t.Errorf("first request should succeed, got %d", firstCode)
	}

	// 闸门释放后可以再次提交
	third := postCSV(mux, validCSV(week()...))
	if third.Code != http.StatusOK {
		t.Errorf("expected 200 after release, got %d", third.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	mux, _ := newTestMux(t, &fakePredictor{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload["status"] != "ok" {
		t.Errorf("got status %q, want ok", payload["status"])
	}
}

func TestHandleState(t *testing.T) {
	mux, _ := newTestMux(t, &fakePredictor{probability: 0.8})

	// 初始状态
	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var state monitoring.UIState
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if state.Gauge.Label != "Awaiting analysis" {
		t.Errorf("initial gauge label %q, want Awaiting analysis", state.Gauge.Label)
	}

	// 分析后状态被覆盖
	postCSV(mux, validCSV(week()...))
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if state.Gauge.Label != "Critical Risk" {
		t.Errorf("gauge label after analysis %q, want Critical Risk", state.Gauge.Label)
	}
}

func TestHandleHistory(t *testing.T) {
	mux, _ := newTestMux(t, &fakePredictor{})
	savedQuery := queryAnalyses
	queryAnalyses = func(limit int) ([]db.Analysis, error) {
		if limit != 5 {
			t.Errorf("got limit %d, want 5", limit)
		}
		return []db.Analysis{{ID: 1, Tier: "high"}}, nil
	}
	defer func() { queryAnalyses = savedQuery }()

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=5", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var payload struct {
		Analyses []db.Analysis `json:"analyses"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(payload.Analyses) != 1 || payload.Analyses[0].Tier != "high" {
		t.Errorf("unexpected history payload: %+v", payload.Analyses)
	}
}

func TestHandleHistory_Error(t *testing.T) {
	mux, _ := newTestMux(t, &fakePredictor{})
	savedQuery := queryAnalyses
	queryAnalyses = func(int) ([]db.Analysis, error) { return nil, errors.New("db closed") }
	defer func() { queryAnalyses = savedQuery }()

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

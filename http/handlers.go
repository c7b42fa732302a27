package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"injurywatch/db"
	"injurywatch/logger"
	"injurywatch/ml"
	"injurywatch/monitoring"
	"injurywatch/pipeline"
	"injurywatch/risk"
)

// 可在测试中替换的持久化入口
var (
	saveAnalysis  = db.SaveAnalysis
	queryAnalyses = db.QueryAnalyses
)

// Predictor 预测客户端接口
type Predictor interface {
	Predict(ctx context.Context, batch *pipeline.WeeklyBatch) (*ml.PredictionResult, error)
}

// Handlers 绑定一组API处理器的依赖
type Handlers struct {
	predictor Predictor
	presenter *monitoring.Presenter
	gate      *monitoring.Gate
	hub       *monitoring.Hub
}

// NewHandlers 创建处理器集合
func NewHandlers(predictor Predictor, presenter *monitoring.Presenter, gate *monitoring.Gate, hub *monitoring.Hub) *Handlers {
	return &Handlers{
		predictor: predictor,
		presenter: presenter,
		gate:      gate,
		hub:       hub,
	}
}

// Register 注册所有路由
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/analyze", h.handleAnalyze)
	mux.HandleFunc("GET /api/state", h.handleState)
	mux.HandleFunc("GET /api/history", h.handleHistory)
	if h.hub != nil {
		mux.HandleFunc("GET /api/ws/dashboard", h.hub.ServeWS)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// analyzeResponse 分析接口的响应体：完整UI状态，失败时附错误消息
type analyzeResponse struct {
	State monitoring.UIState `json:"state"`
	Error string             `json:"error,omitempty"`
}

// handleAnalyze 执行一次完整的提交：摄取校验、预测、分级、落库、
// 覆盖UI状态。同一时刻只允许一次在途分析。
func (h *Handlers) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !h.gate.TryAcquire() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "analysis already in progress"})
		return
	}
	defer h.gate.Release()

	h.presenter.ShowAnalyzing()

	body, err := uploadReader(r)
	if err != nil {
		h.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	defer body.Close()

	batch, err := pipeline.Parse(body)
	if err != nil {
		h.fail(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.predictor.Predict(r.Context(), batch)
	if err != nil {
		h.fail(w, http.StatusBadGateway, err.Error())
		return
	}

	assessment := risk.Classify(result.InjuryProbability)
	features := ml.ComputeFeatureSummary(batch)

	if err := saveAnalysis(historyEntry(batch, result, assessment)); err != nil {
		// 历史记录是附加功能，落库失败不影响本次结果
		logger.S().Warnw("failed to persist analysis", "error", err)
	}

	h.presenter.ShowResult(batch, features, assessment)
	writeJSON(w, http.StatusOK, analyzeResponse{State: h.presenter.Snapshot()})
}

// fail 失败路径：状态覆盖为中性+错误消息，并返回同样的快照
func (h *Handlers) fail(w http.ResponseWriter, status int, message string) {
	h.presenter.ShowFailure(message)
	writeJSON(w, status, analyzeResponse{State: h.presenter.Snapshot(), Error: message})
}

func (h *Handlers) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.presenter.Snapshot())
}

func (h *Handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	analyses, err := queryAnalyses(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"analyses": analyses})
}

// uploadReader 取出上传内容：multipart的file字段或原始请求体。
// multipart临时文件需要调用方Close释放。
func uploadReader(r *http.Request) (io.ReadCloser, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("missing file field in upload")
		}
		return file, nil
	}
	return r.Body, nil
}

// historyEntry 汇总一次已完成分析的历史记录
func historyEntry(batch *pipeline.WeeklyBatch, result *ml.PredictionResult, assessment risk.Assessment) db.Analysis {
	seen := make(map[string]bool)
	var players []string
	for _, rec := range batch.Records {
		if !seen[rec.PlayerID] {
			seen[rec.PlayerID] = true
			players = append(players, rec.PlayerID)
		}
	}

	return db.Analysis{
		PlayerIDs:   strings.Join(players, ","),
		DateFrom:    batch.Records[0].DateText,
		DateTo:      batch.Records[len(batch.Records)-1].DateText,
		Probability: result.InjuryProbability,
		Percent:     assessment.Percent,
		Tier:        assessment.Tier.String(),
		Label:       assessment.Label,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

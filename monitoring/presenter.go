// Package monitoring 持有仪表盘UI状态并将状态变化推送给客户端
package monitoring

import (
	"sync"
	"time"

	"injurywatch/ml"
	"injurywatch/pipeline"
	"injurywatch/risk"
)

// StatusKind 状态消息级别
type StatusKind string

const (
	StatusInfo    StatusKind = "info"
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

// Status 用户可见的状态消息
type Status struct {
	Kind    StatusKind `json:"kind"`
	Message string     `json:"message"`
}

// Gauge 风险仪表：百分比、标签、严重度样式类、说明行
type Gauge struct {
	Percent     float64 `json:"percent"`
	PercentText string  `json:"percent_text"`
	Label       string  `json:"label"`
	Severity    string  `json:"severity"`
	Meta        string  `json:"meta"`
}

// UIState 仪表盘的完整状态。每次提交完成或失败时整体覆盖，
// 绝不做部分合并。
type UIState struct {
	Table     []pipeline.TrainingRecord `json:"table"`
	Features  *ml.FeatureSummary        `json:"features,omitempty"`
	Gauge     Gauge                     `json:"gauge"`
	Status    Status                    `json:"status"`
	Busy      bool                      `json:"busy"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// neutralState 中性的"等待分析"状态
func neutralState() UIState {
	return UIState{
		Table: nil,
		Gauge: Gauge{
			PercentText: "0.0",
			Label:       "Awaiting analysis",
			Severity:    "idle",
			Meta:        "Upload a week of sessions to run an analysis.",
		},
		Status: Status{Kind: StatusInfo, Message: "Awaiting analysis."},
	}
}

// Presenter 拥有UI状态；所有变更只通过下面定义的迁移进行，
// 没有环境全局量。
type Presenter struct {
	mu    sync.RWMutex
	state UIState
	hub   *Hub
}

// NewPresenter creates a presenter in the neutral state. hub may be
// nil when no dashboard clients are served (tests).
func NewPresenter(hub *Hub) *Presenter {
	return &Presenter{state: neutralState(), hub: hub}
}

// Snapshot 返回当前状态的副本
func (p *Presenter) Snapshot() UIState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// ShowAnalyzing marks the dashboard busy while one submission is in
// flight. The table and gauge keep their previous contents.
func (p *Presenter) ShowAnalyzing() {
	p.mu.Lock()
	p.state.Busy = true
	p.state.Status = Status{Kind: StatusInfo, Message: "Analyzing uploaded sessions..."}
	p.state.UpdatedAt = time.Now()
	snapshot := p.state
	p.mu.Unlock()
	p.publish(snapshot)
}

// ShowResult 用完成的分析整体覆盖状态：时间序表格、特征摘要、
// 分级后的风险仪表
func (p *Presenter) ShowResult(batch *pipeline.WeeklyBatch, features ml.FeatureSummary, assessment risk.Assessment) {
	state := UIState{
		Table:    batch.Records,
		Features: &features,
		Gauge: Gauge{
			Percent:     assessment.Percent,
			PercentText: assessment.PercentText,
			Label:       assessment.Label,
			Severity:    assessment.Severity,
			Meta:        assessment.Message,
		},
		Status:    Status{Kind: StatusSuccess, Message: "Analysis complete."},
		UpdatedAt: time.Now(),
	}

	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
	p.publish(state)
}

// ShowFailure 覆盖为失败状态：错误消息原样展示，预览与仪表
// 重置为中性，避免残留与当前文件不一致的风险值
func (p *Presenter) ShowFailure(message string) {
	state := neutralState()
	state.Status = Status{Kind: StatusError, Message: message}
	state.UpdatedAt = time.Now()

	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
	p.publish(state)
}

func (p *Presenter) publish(state UIState) {
	if p.hub != nil {
		p.hub.BroadcastState(state)
	}
}

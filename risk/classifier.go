// Package risk 将模型输出的受伤概率映射为离散风险等级
package risk

import "fmt"

// Tier 风险等级，四档全序
type Tier int

const (
	Low Tier = iota
	Medium
	High
	Critical
)

func (t Tier) String() string {
	switch t {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Assessment 分级结果：等级、展示标签、严重度样式类、说明文案
// 以及百分比数值与一位小数格式化文本
type Assessment struct {
	Tier        Tier    `json:"-"`
	Label       string  `json:"label"`
	Severity    string  `json:"severity"`
	Message     string  `json:"message"`
	Percent     float64 `json:"percent"`
	PercentText string  `json:"percent_text"`
}

// 阈值边界（百分比），左闭右开，75及以上为Critical
const (
	mediumThreshold   = 25.0
	highThreshold     = 50.0
	criticalThreshold = 75.0
)

var tierInfo = map[Tier]struct {
	label   string
	message string
}{
	Low:      {"Low Risk", "Training load looks sustainable. Keep the current program."},
	Medium:   {"Medium Risk", "Elevated load markers. Consider lighter sessions this week."},
	High:     {"High Risk", "Load markers well above baseline. Reduce intensity and monitor closely."},
	Critical: {"Critical Risk", "Injury risk is severe. Rest and a medical assessment are recommended."},
}

// Classify 将任意实数概率夹取到[0,1]，换算为百分比并按固定
// 阈值分级。纯函数，对所有输入总有定义。
func Classify(probability float64) Assessment {
	p := probability
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	percent := p * 100

	var tier Tier
	switch {
	case percent < mediumThreshold:
		tier = Low
	case percent < highThreshold:
		tier = Medium
	case percent < criticalThreshold:
		tier = High
	default:
		tier = Critical
	}

	info := tierInfo[tier]
	return Assessment{
		Tier:        tier,
		Label:       info.label,
		Severity:    tier.String(),
		Message:     info.message,
		Percent:     percent,
		PercentText: fmt.Sprintf("%.1f", percent),
	}
}

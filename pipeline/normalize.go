package pipeline

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

// FeatureColumns 发送给模型的8个数值特征列，顺序固定
var FeatureColumns = []string{
	"speed_mean",
	"speed_max",
	"speed_std",
	"acc_norm_mean",
	"acc_norm_max",
	"acc_norm_std",
	"gyro_norm_mean",
	"gyro_norm_max",
}

// TrainingRecord 单个运动员一天的测量记录，归一化后不可变
type TrainingRecord struct {
	PlayerID string    `json:"player_id"`
	Date     time.Time `json:"-"`
	DateText string    `json:"date"`

	SpeedMean    float64 `json:"speed_mean"`
	SpeedMax     float64 `json:"speed_max"`
	SpeedStd     float64 `json:"speed_std"`
	AccNormMean  float64 `json:"acc_norm_mean"`
	AccNormMax   float64 `json:"acc_norm_max"`
	AccNormStd   float64 `json:"acc_norm_std"`
	GyroNormMean float64 `json:"gyro_norm_mean"`
	GyroNormMax  float64 `json:"gyro_norm_max"`
}

// Features 按FeatureColumns顺序返回8个特征值
func (r *TrainingRecord) Features() []float64 {
	return []float64{
		r.SpeedMean, r.SpeedMax, r.SpeedStd,
		r.AccNormMean, r.AccNormMax, r.AccNormStd,
		r.GyroNormMean, r.GyroNormMax,
	}
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// normalizeRow 将一行已校验形状的原始字段转为TrainingRecord。
// 遇到第一个非法字段立即失败（first-error-wins）。
func normalizeRow(row rawRow) (TrainingRecord, error) {
	var rec TrainingRecord

	// player_id 作为不透明字符串透传，不做UUID校验
	rec.PlayerID = row.fields[0]

	dateStr := row.fields[1]
	if !datePattern.MatchString(dateStr) {
		return rec, &ValidationError{Kind: InvalidDate, Line: row.line, Value: dateStr}
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return rec, &ValidationError{Kind: InvalidDate, Line: row.line, Value: dateStr}
	}
	rec.Date = date
	rec.DateText = dateStr

	values := make([]float64, len(FeatureColumns))
	for i, col := range FeatureColumns {
		raw := row.fields[i+2]
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return rec, &ValidationError{Kind: InvalidNumber, Line: row.line, Column: col}
		}
		values[i] = v
	}

	rec.SpeedMean = values[0]
	rec.SpeedMax = values[1]
	rec.SpeedStd = values[2]
	rec.AccNormMean = values[3]
	rec.AccNormMax = values[4]
	rec.AccNormStd = values[5]
	rec.GyroNormMean = values[6]
	rec.GyroNormMax = values[7]

	return rec, nil
}

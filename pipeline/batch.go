package pipeline

import (
	"io"
	"sort"
)

// SessionCount 一次预测需要的会话数
const SessionCount = 7

// WeeklyBatch 恰好7条记录，按日期升序。装配后不再修改。
type WeeklyBatch struct {
	Records []TrainingRecord
}

// assemble 检查记录数并按日期稳定排序。这是流水线中唯一施加
// 时间顺序的位置，下游不再检查。
func assemble(records []TrainingRecord) (*WeeklyBatch, error) {
	if len(records) != SessionCount {
		return nil, &ValidationError{Kind: WrongSessionCount, Count: len(records)}
	}

	sorted := make([]TrainingRecord, SessionCount)
	copy(sorted, records)
	// 稳定排序：日期相同时保持文件顺序
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	return &WeeklyBatch{Records: sorted}, nil
}

// Parse 执行完整的摄取流水线：解码、分词、表头校验、行归一化、
// 批次装配。任何失败都返回*ValidationError并终止本次提交。
func Parse(r io.Reader) (*WeeklyBatch, error) {
	text, err := DecodeText(r)
	if err != nil {
		return nil, err
	}

	data, err := validateTable(splitRows(text))
	if err != nil {
		return nil, err
	}

	records := make([]TrainingRecord, 0, len(data))
	for _, row := range data {
		rec, err := normalizeRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return assemble(records)
}

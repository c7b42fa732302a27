package pipeline

import (
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// RequiredColumns 输入文件的固定列契约，顺序不可变
var RequiredColumns = []string{
	"player_id",
	"date",
	"speed_mean",
	"speed_max",
	"speed_std",
	"acc_norm_mean",
	"acc_norm_max",
	"acc_norm_std",
	"gyro_norm_mean",
	"gyro_norm_max",
}

// rawRow 一行已分词的数据及其物理行号
type rawRow struct {
	line   int // 1-based physical line number
	fields []string
}

// DecodeText 读取上传内容并解码为UTF-8文本。UTF-8/UTF-16的BOM会被
// 识别并剥离，无BOM时按UTF-8处理。
func DecodeText(r io.Reader) (string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(transform.NewReader(r, decoder))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// splitRows 按任意换行约定切分文本，丢弃空白行，保留物理行号
func splitRows(text string) []rawRow {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var rows []rawRow
	for i, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, rawRow{line: i + 1, fields: TokenizeLine(line)})
	}
	return rows
}

// validateTable 校验表头与各数据行的形状，返回数据行
func validateTable(rows []rawRow) ([]rawRow, error) {
	if len(rows) < 2 {
		return nil, newError(EmptyOrTruncatedInput)
	}

	header := rows[0].fields
	if len(header) != len(RequiredColumns) {
		return nil, &ValidationError{Kind: SchemaMismatch, Expected: RequiredColumns}
	}
	for i, name := range RequiredColumns {
		if header[i] != name {
			return nil, &ValidationError{Kind: SchemaMismatch, Expected: RequiredColumns}
		}
	}

	data := rows[1:]
	for _, row := range data {
		if len(row.fields) != len(RequiredColumns) {
			return nil, &ValidationError{Kind: RowShapeError, Line: row.line}
		}
	}
	return data, nil
}

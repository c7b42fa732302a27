package pipeline

import "strings"

// TokenizeLine 将一行分隔文本切分为去除首尾空白的字段序列。
// 双引号切换引用模式，引用模式内的 "" 转义为字面引号，引用模式内的
// 逗号属于字段内容。本层不产生错误，字段数量由上层校验。
func TokenizeLine(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				cur.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case ch == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}

	// 最后一个字段没有尾随逗号，也要输出
	fields = append(fields, strings.TrimSpace(cur.String()))
	return fields
}

package pipeline

import (
	"fmt"
	"strings"
)

// ErrorKind 校验错误类型
type ErrorKind string

const (
	EmptyOrTruncatedInput ErrorKind = "empty_or_truncated_input"
	SchemaMismatch        ErrorKind = "schema_mismatch"
	RowShapeError         ErrorKind = "row_shape_error"
	InvalidDate           ErrorKind = "invalid_date"
	InvalidNumber         ErrorKind = "invalid_number"
	WrongSessionCount     ErrorKind = "wrong_session_count"
)

// ValidationError 单个结构化校验错误。流水线在第一个错误处终止，
// 不做多错误聚合。
type ValidationError struct {
	Kind     ErrorKind
	Line     int      // 1-based physical line number, 0 when not row-scoped
	Column   string   // offending column name, for InvalidNumber
	Value    string   // offending raw value, for InvalidDate
	Count    int      // actual row count, for WrongSessionCount
	Expected []string // expected column list, for SchemaMismatch
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case EmptyOrTruncatedInput:
		return "file is empty or has no data rows (need a header line plus 7 session rows)"
	case SchemaMismatch:
		return fmt.Sprintf("header does not match the required columns: %s", strings.Join(e.Expected, ", "))
	case RowShapeError:
		return fmt.Sprintf("line %d: expected %d fields, row is malformed", e.Line, len(RequiredColumns))
	case InvalidDate:
		return fmt.Sprintf("line %d: invalid date %q (expected YYYY-MM-DD)", e.Line, e.Value)
	case InvalidNumber:
		return fmt.Sprintf("line %d: column %q is not a finite number", e.Line, e.Column)
	case WrongSessionCount:
		return fmt.Sprintf("expected exactly 7 session rows, got %d", e.Count)
	default:
		return string(e.Kind)
	}
}

func newError(kind ErrorKind) *ValidationError {
	return &ValidationError{Kind: kind}
}

package models

import (
	"errors"
	"fmt"
	"strings"
)

// 错误分类（训练与评分共用）
var (
	// ErrDataUnavailable 数据集不存在（训练时回退到合成数据集）
	ErrDataUnavailable = errors.New("dataset unavailable")
	// ErrSchema 必需列缺失且无法推导
	ErrSchema = errors.New("schema error")
	// ErrInsufficientDiversity 类别数不足 2，或窗口/样本数低于最小值
	ErrInsufficientDiversity = errors.New("insufficient diversity")
	// ErrResamplingInapplicable 少数类过小，无法过采样
	ErrResamplingInapplicable = errors.New("resampling inapplicable")
	// ErrInferenceInput 评分请求字段缺失或非法
	ErrInferenceInput = errors.New("invalid inference input")
	// ErrArtifactPersist 模型产物写入失败（训练运行致命错误）
	ErrArtifactPersist = errors.New("artifact persist failed")
	// ErrArtifactLoad 模型产物读取或校验失败
	ErrArtifactLoad = errors.New("artifact load failed")
)

// SchemaError 列缺失错误，携带缺失的列名
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: missing columns [%s]", strings.Join(e.Missing, ", "))
}

// Is 使 errors.Is(err, ErrSchema) 成立
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// SkipError 某个模型族的训练被跳过（数据质量问题，不是致命错误）
type SkipError struct {
	Family Family
	Reason string
	Cause  error
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("%s training skipped: %s", e.Family, e.Reason)
}

func (e *SkipError) Unwrap() error {
	return e.Cause
}

// NewSkipError 创建跳过错误
func NewSkipError(family Family, cause error, format string, args ...any) *SkipError {
	return &SkipError{
		Family: family,
		Reason: fmt.Sprintf(format, args...),
		Cause:  cause,
	}
}

// IsSkip 判断是否为数据质量导致的跳过（区别于持久化失败）
func IsSkip(err error) bool {
	var skip *SkipError
	return errors.As(err, &skip)
}

// Package preprocess 训练前的数据预处理：标准化、标签编码、分层划分、类权重与过采样
package preprocess

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrNotFitted 在未拟合的转换器上调用 Transform
var ErrNotFitted = errors.New("preprocess: transformer not fitted")

// StandardScaler 按列做零均值单位方差标准化
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// NewStandardScaler 创建未拟合的 StandardScaler
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{}
}

// Fit 计算每列的均值与总体标准差，标准差接近 0 的列使用 1
func (s *StandardScaler) Fit(rows [][]float64) error {
	if len(rows) == 0 {
		return errors.New("preprocess: cannot fit scaler on empty data")
	}
	dim := len(rows[0])
	s.Mean = make([]float64, dim)
	s.Scale = make([]float64, dim)

	col := make([]float64, len(rows))
	for j := 0; j < dim; j++ {
		for i, row := range rows {
			if len(row) != dim {
				return fmt.Errorf("preprocess: row %d has %d columns, expected %d", i, len(row), dim)
			}
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std < 10*epsilon || math.IsNaN(std) {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return nil
}

const epsilon = 2.220446049250313e-16

// Dim 特征维度
func (s *StandardScaler) Dim() int {
	return len(s.Mean)
}

// TransformRow 标准化单行
func (s *StandardScaler) TransformRow(row []float64) ([]float64, error) {
	if err := s.check(row); err != nil {
		return nil, err
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// InverseTransformRow 还原单行
func (s *StandardScaler) InverseTransformRow(row []float64) ([]float64, error) {
	if err := s.check(row); err != nil {
		return nil, err
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = v*s.Scale[j] + s.Mean[j]
	}
	return out, nil
}

// Transform 标准化矩阵（返回新矩阵）
func (s *StandardScaler) Transform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		scaled, err := s.TransformRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}

// TransformSequences 标准化序列集合中的每个时间步
func (s *StandardScaler) TransformSequences(seqs [][][]float64) ([][][]float64, error) {
	out := make([][][]float64, len(seqs))
	for i, seq := range seqs {
		scaled, err := s.Transform(seq)
		if err != nil {
			return nil, fmt.Errorf("sequence %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}

func (s *StandardScaler) check(row []float64) error {
	if len(s.Mean) == 0 || len(s.Scale) != len(s.Mean) {
		return ErrNotFitted
	}
	if len(row) != len(s.Mean) {
		return fmt.Errorf("preprocess: got %d features, scaler expects %d", len(row), len(s.Mean))
	}
	return nil
}

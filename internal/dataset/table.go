// Package dataset 加载训练数据集（CSV / XLSX / HTTP），并在数据集缺失时生成同结构的合成数据
package dataset

import (
	"math"
	"strconv"
	"strings"

	"wisefido-anomaly/internal/models"
)

// Table 带表头的字符串表格
type Table struct {
	Columns []string
	Rows    [][]string
	// Synthetic 为 true 表示合成数据集
	Synthetic bool

	index map[string]int
}

// NewTable 创建表格，表头会去掉首尾空白
func NewTable(columns []string, rows [][]string) *Table {
	t := &Table{Columns: make([]string, len(columns)), Rows: rows, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		c = strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
		t.Columns[i] = c
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
	return t
}

// Len 行数
func (t *Table) Len() int {
	return len(t.Rows)
}

// Has 是否包含列
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Require 检查必需列，缺失时返回 *models.SchemaError
func (t *Table) Require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &models.SchemaError{Missing: missing}
	}
	return nil
}

// String 单元格文本，列不存在或行过短时为空
func (t *Table) String(row int, column string) string {
	j, ok := t.index[column]
	if !ok || j >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][j])
}

// Float 单元格数值，空值、无法解析或非有限值（±Inf、溢出）时为 NaN
func (t *Table) Float(row int, column string) float64 {
	s := t.String(row, column)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// FloatColumn 整列数值
func (t *Table) FloatColumn(column string) ([]float64, error) {
	if !t.Has(column) {
		return nil, &models.SchemaError{Missing: []string{column}}
	}
	out := make([]float64, t.Len())
	for i := range out {
		out[i] = t.Float(i, column)
	}
	return out, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

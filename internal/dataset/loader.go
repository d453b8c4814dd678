package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"wisefido-anomaly/internal/models"
)

// Loader 按来源类型读取数据集：http(s) URL、.xlsx 文件或 CSV 文件
type Loader struct {
	client *resty.Client
	logger *zap.Logger
}

// NewLoader 创建数据集加载器
func NewLoader(timeout time.Duration, logger *zap.Logger) *Loader {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)
	return &Loader{client: client, logger: logger}
}

// Load 读取数据集
//
// 文件不存在或远程返回 404 时返回 models.ErrDataUnavailable，调用方据此回退到合成数据。
func (l *Loader) Load(ctx context.Context, source string) (*Table, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: no source configured", models.ErrDataUnavailable)
	}
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return l.download(ctx, source)
	}

	f, err := os.Open(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrDataUnavailable, source)
		}
		return nil, fmt.Errorf("open dataset %s: %w", source, err)
	}
	defer f.Close()

	t, err := parse(f, source)
	if err != nil {
		return nil, err
	}
	l.logger.Info("Dataset loaded",
		zap.String("source", source),
		zap.Int("rows", t.Len()),
		zap.Strings("columns", t.Columns),
	)
	return t, nil
}

func (l *Loader) download(ctx context.Context, url string) (*Table, error) {
	resp, err := l.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("download dataset %s: %w", url, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s returned 404", models.ErrDataUnavailable, url)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("download dataset %s: status %d", url, resp.StatusCode())
	}

	t, err := parse(bytes.NewReader(resp.Body()), url)
	if err != nil {
		return nil, err
	}
	l.logger.Info("Dataset downloaded",
		zap.String("url", url),
		zap.Int("bytes", len(resp.Body())),
		zap.Int("rows", t.Len()),
	)
	return t, nil
}

func parse(r io.Reader, name string) (*Table, error) {
	if strings.EqualFold(path.Ext(name), ".xlsx") {
		return parseXLSX(r, name)
	}
	return parseCSV(r, name)
}

// parseCSV 读取带表头的 CSV，空文件视为数据不可用
func parseCSV(r io.Reader, name string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: %s is empty", models.ErrDataUnavailable, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header %s: %w", name, err)
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", name, err)
	}
	return NewTable(header, rows), nil
}

// parseXLSX 读取第一个工作表，第一行为表头
func parseXLSX(r io.Reader, name string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx %s: %w", name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s has no sheets", models.ErrDataUnavailable, name)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx %s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", models.ErrDataUnavailable, name)
	}
	return NewTable(rows[0], rows[1:]), nil
}

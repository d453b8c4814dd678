// Package report 导出训练评估报告：ROC/PR/特征重要性/损失曲线图和 XLSX 工作簿
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"wisefido-anomaly/internal/config"
	"wisefido-anomaly/internal/models"
	"wisefido-anomaly/internal/training"
)

// Exporter 评估报告导出器
type Exporter struct {
	dir    string
	logger *zap.Logger
}

// NewExporter 创建导出器，文件写入 dir
func NewExporter(dir string, logger *zap.Logger) *Exporter {
	return &Exporter{dir: dir, logger: logger}
}

// Export 导出训练结果，返回生成的文件路径
//
// 只有训练成功的模型族生成图表；工作簿包含所有模型族的状态汇总。
func (e *Exporter) Export(result *training.Result, opts config.ReportConfig) ([]string, error) {
	if !opts.Plots && !opts.Workbook {
		return nil, nil
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	var files []string
	if opts.Plots {
		for _, fam := range result.Families {
			if fam.Status != models.RunTrained || fam.Evaluation == nil {
				continue
			}
			written, err := e.writePlots(fam)
			files = append(files, written...)
			if err != nil {
				return files, fmt.Errorf("%s plots: %w", fam.Family, err)
			}
		}
	}

	if opts.Workbook {
		path := filepath.Join(e.dir, fmt.Sprintf("training-%s.xlsx", time.Now().UTC().Format("20060102-150405")))
		if err := writeWorkbook(result, path); err != nil {
			return files, fmt.Errorf("workbook: %w", err)
		}
		files = append(files, path)
	}

	e.logger.Info("Evaluation report exported",
		zap.String("dir", e.dir),
		zap.Strings("files", files),
	)
	return files, nil
}

func (e *Exporter) writePlots(fam *training.FamilyReport) ([]string, error) {
	eval := fam.Evaluation
	prefix := filepath.Join(e.dir, fmt.Sprintf("%s_%s", fam.Family, fam.RunID))
	var files []string

	if eval.ROC != nil {
		path := prefix + "_roc.png"
		if err := plotCurve(eval.ROC, curveSpec{
			title:    fmt.Sprintf("ROC Curve - %s", fam.Family),
			xLabel:   "False Positive Rate",
			yLabel:   "True Positive Rate",
			area:     eval.ROCAUC,
			areaName: "AUC",
			diagonal: true,
		}, path); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	if eval.PR != nil {
		path := prefix + "_pr.png"
		if err := plotCurve(eval.PR, curveSpec{
			title:    fmt.Sprintf("Precision-Recall Curve - %s", fam.Family),
			xLabel:   "Recall",
			yLabel:   "Precision",
			area:     eval.AveragePrecision,
			areaName: "AP",
		}, path); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	if len(eval.Importances) > 0 {
		path := prefix + "_importances.png"
		if err := plotImportances(eval.Importances, topImportances, path); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	if eval.History != nil && len(eval.History.Loss) > 0 {
		path := prefix + "_loss.png"
		if err := plotHistory(eval.History, path); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}

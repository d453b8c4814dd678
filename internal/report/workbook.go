package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"wisefido-anomaly/internal/models"
	"wisefido-anomaly/internal/training"
)

const summarySheet = "Summary"

// SummaryHeader 汇总表表头
var SummaryHeader = []string{
	"Family",
	"Run ID",
	"Status",
	"Reason",
	"Synthetic",
	"Accuracy",
	"ROC AUC",
	"Average Precision",
	"Artifact Path",
	"Started At",
	"Finished At",
}

var classHeader = []string{"Class", "Precision", "Recall", "F1", "Support"}

// writeWorkbook 把训练结果写入 XLSX：汇总表 + 每个已训练模型族的分类报告、混淆矩阵等
func writeWorkbook(result *training.Result, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	w := &sheetWriter{f: f, headerStyle: headerStyle}

	w.header(summarySheet, 1, SummaryHeader)
	for i, fam := range result.Families {
		row := []any{
			string(fam.Family),
			fam.RunID,
			string(fam.Status),
			fam.Reason,
			fam.Synthetic,
			nil, nil, nil,
			fam.ArtifactPath,
			fam.StartedAt.Format("2006-01-02 15:04:05"),
			fam.FinishedAt.Format("2006-01-02 15:04:05"),
		}
		if eval := fam.Evaluation; eval != nil {
			row[5] = eval.Accuracy
			row[6] = optional(eval.ROCAUC)
			row[7] = optional(eval.AveragePrecision)
		}
		w.row(summarySheet, i+2, row)
	}
	w.widths(summarySheet, []float64{10, 38, 10, 50, 10, 12, 12, 18, 40, 20, 20})
	w.freezeHeader(summarySheet)

	for _, fam := range result.Families {
		if fam.Status != models.RunTrained || fam.Evaluation == nil {
			continue
		}
		w.classification(fam)
		if len(fam.Evaluation.Importances) > 0 {
			sheet := fmt.Sprintf("%s importances", fam.Family)
			w.newSheet(sheet)
			w.header(sheet, 1, []string{"Feature", "Importance"})
			for i, imp := range fam.Evaluation.Importances {
				w.row(sheet, i+2, []any{imp.Feature, imp.Importance})
			}
			w.widths(sheet, []float64{24, 14})
		}
		if s := fam.Evaluation.Search; s != nil {
			sheet := fmt.Sprintf("%s grid search", fam.Family)
			w.newSheet(sheet)
			w.header(sheet, 1, []string{"Params", "Mean F1", "Fold F1", "Best"})
			for i, c := range s.Candidates {
				w.row(sheet, i+2, []any{c.Params.String(), c.MeanF1, fmt.Sprint(c.FoldF1), c.Params == s.Best})
			}
			w.widths(sheet, []float64{90, 12, 30, 8})
			w.freezeHeader(sheet)
		}
		if h := fam.Evaluation.History; h != nil {
			sheet := fmt.Sprintf("%s history", fam.Family)
			w.newSheet(sheet)
			w.header(sheet, 1, []string{"Epoch", "Loss", "Val Loss", "Accuracy", "Val Accuracy"})
			for i := range h.Loss {
				w.row(sheet, i+2, []any{i + 1, h.Loss[i], at(h.ValLoss, i), at(h.Accuracy, i), at(h.ValAccuracy, i)})
			}
		}
	}

	if w.err != nil {
		return w.err
	}
	return f.SaveAs(path)
}

// sheetWriter 记录第一个错误，后续写入跳过
type sheetWriter struct {
	f           *excelize.File
	headerStyle int
	err         error
}

func (w *sheetWriter) newSheet(sheet string) {
	if w.err != nil {
		return
	}
	if _, err := w.f.NewSheet(sheet); err != nil {
		w.err = fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
}

func (w *sheetWriter) header(sheet string, row int, headers []string) {
	values := make([]any, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	w.row(sheet, row, values)
	if w.err != nil {
		return
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(headers), row)
	if err := w.f.SetCellStyle(sheet, first, last, w.headerStyle); err != nil {
		w.err = fmt.Errorf("failed to set header style: %w", err)
	}
}

func (w *sheetWriter) row(sheet string, row int, values []any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		w.err = fmt.Errorf("failed to convert coordinates: %w", err)
		return
	}
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		w.err = fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
}

func (w *sheetWriter) widths(sheet string, widths []float64) {
	for i, width := range widths {
		if w.err != nil {
			return
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			w.err = err
			return
		}
		if err := w.f.SetColWidth(sheet, col, col, width); err != nil {
			w.err = fmt.Errorf("failed to set column width: %w", err)
		}
	}
}

func (w *sheetWriter) freezeHeader(sheet string) {
	if w.err != nil {
		return
	}
	if err := w.f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		w.err = fmt.Errorf("failed to freeze header: %w", err)
	}
}

// classification 分类报告与混淆矩阵
func (w *sheetWriter) classification(fam *training.FamilyReport) {
	report := fam.Evaluation.Classification
	if report == nil {
		return
	}
	sheet := fmt.Sprintf("%s metrics", fam.Family)
	w.newSheet(sheet)
	w.header(sheet, 1, classHeader)

	row := 2
	for _, c := range report.Classes {
		w.row(sheet, row, []any{c.Class, c.Precision, c.Recall, c.F1, c.Support})
		row++
	}
	w.row(sheet, row, []any{"macro avg", report.MacroAvg.Precision, report.MacroAvg.Recall, report.MacroAvg.F1, report.MacroAvg.Support})
	w.row(sheet, row+1, []any{"weighted avg", report.WeightedAvg.Precision, report.WeightedAvg.Recall, report.WeightedAvg.F1, report.WeightedAvg.Support})
	w.row(sheet, row+2, []any{"accuracy", nil, nil, report.Accuracy})

	// 混淆矩阵：行为真实类别，列为预测类别
	row += 4
	header := []string{"True \\ Predicted"}
	for _, c := range report.Classes {
		header = append(header, c.Class)
	}
	w.header(sheet, row, header)
	for i, counts := range report.Confusion {
		values := []any{report.Classes[i].Class}
		for _, n := range counts {
			values = append(values, n)
		}
		w.row(sheet, row+1+i, values)
	}
	w.widths(sheet, []float64{18, 12, 12, 12, 12})
}

func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func at(values []float64, i int) any {
	if i < len(values) {
		return values[i]
	}
	return nil
}

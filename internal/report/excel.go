// Package report 實作評估資料的Excel匯出與讀回
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/intenza/hfeval/internal/model"
	"github.com/intenza/hfeval/internal/summary"
	"github.com/xuri/excelize/v2"
)

// 匯出檔的欄位標題，順序固定
var recordHeaders = []string{"測試者", "機器代碼", "區塊", "項目", "Pass/NG", "Note", "分數", "日期時間"}

// 常用工作表名稱
const (
	// SheetSession 會話匯出
	SheetSession = "Session資料"

	// SheetToday 今日資料匯出
	SheetToday = "今天資料"

	// SheetAnalysis 分析報告
	SheetAnalysis = "分析報告"
)

// timeLayout 日期時間欄位的格式
const timeLayout = "2006-01-02 15:04:05"

// headerColumnWidth 所有欄位統一的欄寬
const headerColumnWidth = 20

// newHeaderStyle 建立表頭樣式：綠底白字置中粗體
func newHeaderStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4CAF50"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
}

// freezeHeaderRow 凍結表頭列
func freezeHeaderRow(f *excelize.File, sheet string) error {
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// writeHeader 寫入表頭並套用樣式與欄寬
func writeHeader(f *excelize.File, sheet string, headers []string) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	style, err := newHeaderStyle(f)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}

	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, headerColumnWidth); err != nil {
		return err
	}

	return freezeHeaderRow(f, sheet)
}

// BuildRecordsWorkbook 將扁平記錄寫成工作簿
func BuildRecordsWorkbook(records []*model.Record, sheet string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	if err := writeHeader(f, sheet, recordHeaders); err != nil {
		return nil, err
	}

	for i, r := range records {
		row := i + 2
		values := []interface{}{
			r.Tester,
			r.MachineCode,
			r.Section,
			r.Item,
			string(r.Verdict),
			r.Note,
			nil,
			r.RecordedAt.Format(timeLayout),
		}
		if r.Score != nil {
			values[6] = *r.Score
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	return f, nil
}

// WriteRecordsExcel 將扁平記錄以xlsx格式寫入
func WriteRecordsExcel(w io.Writer, records []*model.Record, sheet string) error {
	f, err := BuildRecordsWorkbook(records, sheet)
	if err != nil {
		return model.NewFileError(model.ErrCodeFileWriteError, sheet, "build", "建立匯出工作簿失敗", err)
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return model.NewFileError(model.ErrCodeFileWriteError, sheet, "write", "寫出匯出檔失敗", err)
	}
	return nil
}

// BuildSummaryWorkbook 將彙總表寫成分析報告工作簿
// 欄位為 區塊、項目 加上目錄順序的全部機器代碼
func BuildSummaryWorkbook(table *summary.SummaryTable) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetAnalysis); err != nil {
		return nil, err
	}

	headers := append([]string{"區塊", "項目"}, table.Machines...)
	if err := writeHeader(f, SheetAnalysis, headers); err != nil {
		return nil, err
	}

	for i, r := range table.Rows {
		row := i + 2
		values := []interface{}{r.Section, r.Item}
		for _, machine := range table.Machines {
			if v, ok := r.Cells[machine]; ok {
				values = append(values, v)
			} else {
				values = append(values, nil)
			}
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(SheetAnalysis, cell, v); err != nil {
				return nil, err
			}
		}
	}

	return f, nil
}

// WriteSummaryExcel 將彙總表以xlsx格式寫入
func WriteSummaryExcel(w io.Writer, table *summary.SummaryTable) error {
	f, err := BuildSummaryWorkbook(table)
	if err != nil {
		return model.NewFileError(model.ErrCodeFileWriteError, SheetAnalysis, "build", "建立分析報告失敗", err)
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return model.NewFileError(model.ErrCodeFileWriteError, SheetAnalysis, "write", "寫出分析報告失敗", err)
	}
	return nil
}

// AnalysisFileName 產生分析報告的下載檔名
func AnalysisFileName(now time.Time) string {
	return fmt.Sprintf("分析報告_INTENZA_%s.xlsx", now.Format("20060102"))
}

// SessionFileName 產生會話匯出的下載檔名
func SessionFileName(tester string, now time.Time) string {
	return fmt.Sprintf("Session資料_%s_%s.xlsx", tester, now.Format("20060102"))
}

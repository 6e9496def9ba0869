package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/intenza/hfeval/internal/model"
	"github.com/xuri/excelize/v2"
)

// RecordParser 匯出檔解析器
// 將先前匯出的xlsx記錄檔讀回記錄集合；
// 判定與評分的缺值保留為缺值，不會被強制成零或空字串
type RecordParser struct {
	// StrictMode 嚴格模式下欄位不齊的列會回傳錯誤，否則跳過
	StrictMode bool
}

// NewRecordParser 建立解析器
func NewRecordParser() *RecordParser {
	return &RecordParser{}
}

// ParseReader 解析xlsx資料流
func (p *RecordParser) ParseReader(r io.Reader) ([]*model.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, model.NewFileError(model.ErrCodeFileReadError, "", "open", "開啟Excel資料失敗", err)
	}
	defer f.Close()

	return p.parse(f)
}

// ParseFile 解析xlsx檔案
func (p *RecordParser) ParseFile(filePath string) ([]*model.Record, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, model.NewFileError(model.ErrCodeFileReadError, filePath, "open", "開啟Excel檔案失敗", err)
	}
	defer f.Close()

	return p.parse(f)
}

// parse 讀取第一個工作表並逐列轉為記錄
func (p *RecordParser) parse(f *excelize.File) ([]*model.Record, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, model.NewFileError(model.ErrCodeInvalidFormat, "", "sheets", "工作簿中沒有工作表", nil)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, model.NewFileError(model.ErrCodeFileReadError, sheets[0], "read_sheet", "讀取工作表失敗", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// 以表頭列建立欄名 → 欄位索引，容忍欄位順序不同
	index := make(map[string]int)
	for i, h := range rows[0] {
		index[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"測試者", "機器代碼", "區塊", "項目"} {
		if _, ok := index[required]; !ok {
			return nil, model.NewFileError(model.ErrCodeInvalidFormat, sheets[0], "header",
				"匯出檔缺少必要欄位: "+required, nil)
		}
	}

	var records []*model.Record
	for rowIdx, row := range rows[1:] {
		r := p.parseRow(row, index)
		if r == nil {
			if p.StrictMode {
				return nil, model.NewFileError(model.ErrCodeParseError, sheets[0], "row",
					"第"+strconv.Itoa(rowIdx+2)+"列缺少必要欄位", nil)
			}
			continue
		}
		records = append(records, r)
	}

	return records, nil
}

// parseRow 轉換單一資料列，必要欄位缺失時回傳nil
func (p *RecordParser) parseRow(row []string, index map[string]int) *model.Record {
	get := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	tester := get("測試者")
	machine := get("機器代碼")
	section := get("區塊")
	item := get("項目")
	if tester == "" || machine == "" || section == "" || item == "" {
		return nil
	}

	return &model.Record{
		Tester:      tester,
		MachineCode: machine,
		Section:     section,
		Item:        item,
		Verdict:     parseVerdict(get("Pass/NG")),
		Note:        get("Note"),
		Score:       parseScore(get("分數")),
		RecordedAt:  parseTimestamp(get("日期時間")),
	}
}

// parseVerdict 空白或未知取值一律視為未選擇
func parseVerdict(raw string) model.Verdict {
	v := model.Verdict(raw)
	if v.IsValid() {
		return v
	}
	return model.VerdictUnanswered
}

// parseScore 無法解析的評分視為缺值，不視為零分
func parseScore(raw string) *int {
	if raw == "" {
		return nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return &n
	}
	// Excel有時把整數存成浮點字串
	if fl, err := strconv.ParseFloat(raw, 64); err == nil && fl == float64(int(fl)) {
		n := int(fl)
		return &n
	}
	return nil
}

// parseTimestamp 解析失敗時回傳零值時間
func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{timeLayout, "2006-01-02 15:04", "2006/01/02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

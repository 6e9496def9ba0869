// Package model 定義核心資料模型
package model

import (
	"time"
)

// Verdict 單一評估項目的判定結果
type Verdict string

// 預定義判定結果
const (
	// VerdictPass 通過
	VerdictPass Verdict = "Pass"

	// VerdictNG 不通過
	VerdictNG Verdict = "NG"

	// VerdictNA 不適用（區塊總結、整體評分等非判定列）
	VerdictNA Verdict = "N/A"

	// VerdictUnanswered 測試者未選擇
	VerdictUnanswered Verdict = "未選擇"
)

// 固定的區塊與項目名稱，與匯出檔欄位保持一致
const (
	// SectionOverall 整體評估虛擬區塊
	SectionOverall = "整體評估"

	// SectionSupplementary 補充追蹤問題區塊
	SectionSupplementary = "Fibo問題追蹤"

	// ItemSectionSummary 區塊總結列的項目名稱
	ItemSectionSummary = "區塊總結 Note"

	// ItemOverallScore 整體評分列的項目名稱
	ItemOverallScore = "整體評分"
)

// 整體評分的取值範圍與預設值
const (
	ScoreMin     = 1
	ScoreMax     = 5
	ScoreDefault = 3
)

// IsCountable 判定是否計入通過率分母
// 未選擇與N/A一律排除，不視為失敗
func (v Verdict) IsCountable() bool {
	return v == VerdictPass || v == VerdictNG
}

// IsValid 檢查判定值是否為已知取值
func (v Verdict) IsValid() bool {
	switch v {
	case VerdictPass, VerdictNG, VerdictNA, VerdictUnanswered:
		return true
	}
	return false
}

// Record 一筆扁平化的評估記錄
// 對應匯出檔中的一列，建立後不可變更
type Record struct {
	// Tester 測試者姓名
	Tester string `json:"tester" validate:"required"`

	// MachineCode 機器代碼，如 "ZL-01"
	MachineCode string `json:"machine_code" validate:"required"`

	// Section 區塊名稱
	Section string `json:"section" validate:"required"`

	// Item 項目名稱（問題文字或固定項目）
	Item string `json:"item" validate:"required"`

	// Verdict 判定結果
	Verdict Verdict `json:"verdict"`

	// Note 自由文字備註
	Note string `json:"note,omitempty"`

	// Score 整體評分，nil 表示缺值
	Score *int `json:"score,omitempty"`

	// RecordedAt 記錄時間，同一批次內完全相同
	RecordedAt time.Time `json:"recorded_at"`
}

// IsSectionSummary 是否為區塊總結列
func (r *Record) IsSectionSummary() bool {
	return r.Item == ItemSectionSummary
}

// IsOverallScore 是否為整體評分列
func (r *Record) IsOverallScore() bool {
	return r.Section == SectionOverall && r.Item == ItemOverallScore
}

// RecordBatch 單次完成機台所產生的一批記錄
// 批次內所有記錄共享同一時間戳
type RecordBatch struct {
	// BatchID 批次ID（UUID）
	BatchID string `json:"batch_id"`

	// Tester 測試者姓名
	Tester string `json:"tester"`

	// MachineCode 機器代碼
	MachineCode string `json:"machine_code"`

	// Records 批次內的記錄
	Records []*Record `json:"records"`

	// CreatedAt 批次建立時間
	CreatedAt time.Time `json:"created_at"`
}

// MachineCodes 回傳記錄集合中出現過的機器代碼（去重，保留首見順序）
func MachineCodes(records []*Record) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, r := range records {
		if !seen[r.MachineCode] {
			seen[r.MachineCode] = true
			codes = append(codes, r.MachineCode)
		}
	}
	return codes
}

// FilterByMachine 篩選出指定機器代碼的記錄
func FilterByMachine(records []*Record, code string) []*Record {
	var out []*Record
	for _, r := range records {
		if r.MachineCode == code {
			out = append(out, r)
		}
	}
	return out
}

// RemoveByMachine 移除指定機器代碼的全部記錄，回傳剩餘集合
// 用於「修正已完成機台」：舊記錄整批移除後重填
func RemoveByMachine(records []*Record, code string) []*Record {
	out := make([]*Record, 0, len(records))
	for _, r := range records {
		if r.MachineCode != code {
			out = append(out, r)
		}
	}
	return out
}

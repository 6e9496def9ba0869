package database

import (
	"time"

	"gorm.io/datatypes"

	"github.com/intenza/hfeval/internal/model"
)

// EvalRecordRow 評估記錄資料列
// 一列對應匯出檔的一筆記錄；寫入後不再更新，
// 僅在「修正已完成機台」時整批刪除後重建
type EvalRecordRow struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	BatchID     string    `json:"batch_id" gorm:"type:uuid;not null;index"`
	Tester      string    `json:"tester" gorm:"type:varchar(255);not null;index"`
	MachineCode string    `json:"machine_code" gorm:"type:varchar(50);not null;index"`
	Section     string    `json:"section" gorm:"type:varchar(255);not null"`
	Item        string    `json:"item" gorm:"type:text;not null"`
	Verdict     string    `json:"verdict" gorm:"type:varchar(50);not null"`
	Note        string    `json:"note,omitempty" gorm:"type:text"`
	Score       *int      `json:"score,omitempty"` // nil 表示缺值
	RecordedAt  time.Time `json:"recorded_at" gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;default:now()"`
}

// BatchRow 批次中繼資料
// 每次完成機台寫入一列，Meta 存放來源會話等額外資訊
type BatchRow struct {
	ID          string         `json:"id" gorm:"primaryKey;type:uuid"`
	Tester      string         `json:"tester" gorm:"type:varchar(255);not null;index"`
	MachineCode string         `json:"machine_code" gorm:"type:varchar(50);not null;index"`
	RecordCount int            `json:"record_count" gorm:"not null;default:0"`
	Meta        datatypes.JSON `json:"meta,omitempty" gorm:"type:jsonb"`
	CreatedAt   time.Time      `json:"created_at" gorm:"not null;default:now()"`
}

// TableName 指定表名和schema
func (EvalRecordRow) TableName() string {
	return "hfeval.eval_records"
}

// TableName 指定表名和schema
func (BatchRow) TableName() string {
	return "hfeval.batches"
}

// FromRecord 由領域記錄建立資料列
func FromRecord(batchID string, r *model.Record) *EvalRecordRow {
	return &EvalRecordRow{
		BatchID:     batchID,
		Tester:      r.Tester,
		MachineCode: r.MachineCode,
		Section:     r.Section,
		Item:        r.Item,
		Verdict:     string(r.Verdict),
		Note:        r.Note,
		Score:       r.Score,
		RecordedAt:  r.RecordedAt,
	}
}

// ToRecord 還原為領域記錄
func (row *EvalRecordRow) ToRecord() *model.Record {
	return &model.Record{
		Tester:      row.Tester,
		MachineCode: row.MachineCode,
		Section:     row.Section,
		Item:        row.Item,
		Verdict:     model.Verdict(row.Verdict),
		Note:        row.Note,
		Score:       row.Score,
		RecordedAt:  row.RecordedAt,
	}
}

package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/intenza/hfeval/internal/model"
)

// buildBatch 將暫存狀態物化為一批不可變記錄
// 每個問題一筆（未作答寫入 未選擇）、每個區塊一筆總結、
// 目前機台的每個補充問題一筆、整體評分一筆；
// 全部共享同一時間戳。呼叫端須持有鎖
func (s *Session) buildBatch() *model.RecordBatch {
	machine := s.currentMachine()
	now := time.Now()

	var records []*model.Record

	for _, sec := range s.catalog.Sections {
		for _, item := range sec.Items {
			verdict := model.VerdictUnanswered
			note := ""
			if ans, ok := s.pendingAnswers[answerKey{Section: sec.Name, Item: item}]; ok {
				if ans.Verdict.IsValid() && ans.Verdict != model.VerdictNA {
					verdict = ans.Verdict
				}
				note = ans.Note
			}
			records = append(records, &model.Record{
				Tester:      s.testerName,
				MachineCode: machine,
				Section:     sec.Name,
				Item:        item,
				Verdict:     verdict,
				Note:        note,
				RecordedAt:  now,
			})
		}

		records = append(records, &model.Record{
			Tester:      s.testerName,
			MachineCode: machine,
			Section:     sec.Name,
			Item:        model.ItemSectionSummary,
			Verdict:     model.VerdictNA,
			Note:        s.pendingSectionNotes[sec.Name],
			RecordedAt:  now,
		})
	}

	for _, item := range s.catalog.SupplementaryFor(machine) {
		verdict := model.VerdictUnanswered
		note := ""
		if ans, ok := s.pendingAnswers[answerKey{Section: model.SectionSupplementary, Item: item}]; ok {
			if ans.Verdict.IsValid() && ans.Verdict != model.VerdictNA {
				verdict = ans.Verdict
			}
			note = ans.Note
		}
		records = append(records, &model.Record{
			Tester:      s.testerName,
			MachineCode: machine,
			Section:     model.SectionSupplementary,
			Item:        item + " （Fibo問題）",
			Verdict:     verdict,
			Note:        note,
			RecordedAt:  now,
		})
	}

	score := s.pendingOverallScore
	records = append(records, &model.Record{
		Tester:      s.testerName,
		MachineCode: machine,
		Section:     model.SectionOverall,
		Item:        model.ItemOverallScore,
		Verdict:     model.VerdictNA,
		Score:       &score,
		RecordedAt:  now,
	})

	return &model.RecordBatch{
		BatchID:     uuid.New().String(),
		Tester:      s.testerName,
		MachineCode: machine,
		Records:     records,
		CreatedAt:   now,
	}
}

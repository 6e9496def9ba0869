package session

import (
	"strings"
	"testing"

	"github.com/intenza/hfeval/internal/catalog"
	"github.com/intenza/hfeval/internal/model"
)

// newEvaluating 建立已進入評估狀態的會話（ZL 系列，游標在ZL-01）
func newEvaluating(t *testing.T) *Session {
	t.Helper()
	s := New(catalog.Default())
	if err := s.SubmitTesterName("Alice"); err != nil {
		t.Fatalf("SubmitTesterName failed: %v", err)
	}
	if err := s.ChooseSeries("ZL 系列"); err != nil {
		t.Fatalf("ChooseSeries failed: %v", err)
	}
	return s
}

func TestSession_StateProgression(t *testing.T) {
	s := New(catalog.Default())

	if s.State() != StateAwaitingTesterName {
		t.Errorf("Expected awaiting_tester_name, got %s", s.State())
	}

	if err := s.SubmitTesterName("  Alice  "); err != nil {
		t.Fatalf("SubmitTesterName failed: %v", err)
	}
	if s.TesterName() != "Alice" {
		t.Errorf("Expected trimmed name Alice, got %q", s.TesterName())
	}
	if s.State() != StateAwaitingSeriesChoice {
		t.Errorf("Expected awaiting_series_choice, got %s", s.State())
	}

	if err := s.ChooseSeries("ZL 系列"); err != nil {
		t.Fatalf("ChooseSeries failed: %v", err)
	}
	if s.State() != StateEvaluatingMachine {
		t.Errorf("Expected evaluating_machine, got %s", s.State())
	}
	if s.CurrentMachine() != "ZL-01" {
		t.Errorf("Expected ZL-01, got %s", s.CurrentMachine())
	}
}

func TestSubmitTesterName_Errors(t *testing.T) {
	s := New(catalog.Default())

	// 空白姓名
	err := s.SubmitTesterName("   ")
	if !model.IsErrorType(err, model.ErrCodeValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
	if s.State() != StateAwaitingTesterName {
		t.Error("Rejected action should not change state")
	}

	// 重複提交
	if err := s.SubmitTesterName("Alice"); err != nil {
		t.Fatalf("SubmitTesterName failed: %v", err)
	}
	err = s.SubmitTesterName("Bob")
	if !model.IsErrorType(err, model.ErrCodeState) {
		t.Errorf("Expected state error, got %v", err)
	}
	if s.TesterName() != "Alice" {
		t.Errorf("Name should be unchanged, got %s", s.TesterName())
	}
}

func TestChooseSeries_Errors(t *testing.T) {
	s := New(catalog.Default())

	// 尚未輸入姓名
	err := s.ChooseSeries("ZL 系列")
	if !model.IsErrorType(err, model.ErrCodeState) {
		t.Errorf("Expected state error, got %v", err)
	}

	if err := s.SubmitTesterName("Alice"); err != nil {
		t.Fatalf("SubmitTesterName failed: %v", err)
	}

	// 未知系列
	err = s.ChooseSeries("不存在的系列")
	if !model.IsErrorType(err, model.ErrCodeValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
	if s.State() != StateAwaitingSeriesChoice {
		t.Error("Rejected action should not change state")
	}
}

func TestRecordVerdict(t *testing.T) {
	s := newEvaluating(t)

	tests := []struct {
		name     string
		section  string
		item     string
		verdict  model.Verdict
		wantCode model.ErrorCode
	}{
		{
			name:    "合法判定",
			section: "觸感體驗",
			item:    "承靠部位是否舒適？",
			verdict: model.VerdictPass,
		},
		{
			name:     "不接受N/A判定",
			section:  "觸感體驗",
			item:     "承靠部位是否舒適？",
			verdict:  model.VerdictNA,
			wantCode: model.ErrCodeValidation,
		},
		{
			name:     "未知問題",
			section:  "觸感體驗",
			item:     "不存在的問題？",
			verdict:  model.VerdictPass,
			wantCode: model.ErrCodeValidation,
		},
		{
			name:     "區塊與問題不匹配",
			section:  "人因調整",
			item:     "承靠部位是否舒適？",
			verdict:  model.VerdictPass,
			wantCode: model.ErrCodeValidation,
		},
		{
			name:    "目前機台的補充問題",
			section: model.SectionSupplementary,
			item:    "座椅目前夠低嗎？",
			verdict: model.VerdictNG,
		},
		{
			name:     "別台機器的補充問題",
			section:  model.SectionSupplementary,
			item:     "椅背會太低嗎？",
			verdict:  model.VerdictNG,
			wantCode: model.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.RecordVerdict(tt.section, tt.item, tt.verdict)
			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if !model.IsErrorType(err, tt.wantCode) {
				t.Errorf("Expected %s, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestRecordVerdict_LastWriteWins(t *testing.T) {
	s := newEvaluating(t)

	item := "承靠部位是否舒適？"
	if err := s.RecordVerdict("觸感體驗", item, model.VerdictPass); err != nil {
		t.Fatalf("RecordVerdict failed: %v", err)
	}
	if err := s.RecordNote("觸感體驗", item, "靠墊偏硬"); err != nil {
		t.Fatalf("RecordNote failed: %v", err)
	}
	if err := s.RecordVerdict("觸感體驗", item, model.VerdictNG); err != nil {
		t.Fatalf("RecordVerdict failed: %v", err)
	}

	batch, err := s.CompleteMachine()
	if err != nil {
		t.Fatalf("CompleteMachine failed: %v", err)
	}

	found := false
	for _, r := range batch.Records {
		if r.Item == item {
			found = true
			if r.Verdict != model.VerdictNG {
				t.Errorf("Expected last verdict NG, got %s", r.Verdict)
			}
			if r.Note != "靠墊偏硬" {
				t.Errorf("Note should survive verdict overwrite, got %q", r.Note)
			}
		}
	}
	if !found {
		t.Fatal("Expected record for answered item")
	}
}

func TestCompleteMachine_BatchShape(t *testing.T) {
	s := newEvaluating(t)

	if err := s.RecordVerdict("觸感體驗", "承靠部位是否舒適？", model.VerdictPass); err != nil {
		t.Fatalf("RecordVerdict failed: %v", err)
	}
	if err := s.RecordSectionSummary("觸感體驗", "整體不錯"); err != nil {
		t.Fatalf("RecordSectionSummary failed: %v", err)
	}
	if err := s.RecordOverallScore(5); err != nil {
		t.Fatalf("RecordOverallScore failed: %v", err)
	}

	batch, err := s.CompleteMachine()
	if err != nil {
		t.Fatalf("CompleteMachine failed: %v", err)
	}

	// ZL-01：18個問題 + 6個區塊總結 + 1個補充問題 + 1筆整體評分
	if len(batch.Records) != 26 {
		t.Fatalf("Expected 26 records for ZL-01, got %d", len(batch.Records))
	}
	if batch.MachineCode != "ZL-01" {
		t.Errorf("Expected machine ZL-01, got %s", batch.MachineCode)
	}
	if batch.BatchID == "" {
		t.Error("Expected non-empty batch ID")
	}

	var (
		unanswered   int
		summaryNotes int
		fibo         int
		scoreRecords int
	)
	for _, r := range batch.Records {
		// 整批共享同一時間戳
		if !r.RecordedAt.Equal(batch.CreatedAt) {
			t.Errorf("Record timestamp differs from batch timestamp")
		}
		if r.Tester != "Alice" {
			t.Errorf("Expected tester Alice, got %s", r.Tester)
		}

		switch {
		case r.IsSectionSummary():
			summaryNotes++
			if r.Verdict != model.VerdictNA {
				t.Errorf("Section summary verdict should be N/A, got %s", r.Verdict)
			}
			if r.Section == "觸感體驗" && r.Note != "整體不錯" {
				t.Errorf("Expected section note, got %q", r.Note)
			}
		case r.IsOverallScore():
			scoreRecords++
			if r.Score == nil || *r.Score != 5 {
				t.Errorf("Expected score 5, got %v", r.Score)
			}
		case r.Section == model.SectionSupplementary:
			fibo++
			if !strings.HasSuffix(r.Item, "（Fibo問題）") {
				t.Errorf("Supplementary item should carry marker, got %q", r.Item)
			}
		case r.Verdict == model.VerdictUnanswered:
			unanswered++
		}
	}

	if summaryNotes != 6 {
		t.Errorf("Expected 6 section summaries, got %d", summaryNotes)
	}
	if fibo != 1 {
		t.Errorf("Expected 1 supplementary record, got %d", fibo)
	}
	if scoreRecords != 1 {
		t.Errorf("Expected 1 score record, got %d", scoreRecords)
	}
	// 18個問題只回答了1個
	if unanswered != 17 {
		t.Errorf("Expected 17 unanswered questions, got %d", unanswered)
	}

	// 游標前進、暫存清空
	if s.CurrentMachine() != "ZL-02" {
		t.Errorf("Expected cursor at ZL-02, got %s", s.CurrentMachine())
	}
	batch2, err := s.CompleteMachine()
	if err != nil {
		t.Fatalf("CompleteMachine failed: %v", err)
	}
	for _, r := range batch2.Records {
		if r.IsOverallScore() && (r.Score == nil || *r.Score != model.ScoreDefault) {
			t.Errorf("Score should reset to default %d, got %v", model.ScoreDefault, r.Score)
		}
		if r.IsSectionSummary() && r.Note != "" {
			t.Errorf("Section notes should be cleared, got %q", r.Note)
		}
	}
}

func TestRecordOverallScore_Range(t *testing.T) {
	s := newEvaluating(t)

	for _, score := range []int{0, 6, -1} {
		if err := s.RecordOverallScore(score); !model.IsErrorType(err, model.ErrCodeValidation) {
			t.Errorf("Expected validation error for score %d, got %v", score, err)
		}
	}
	for _, score := range []int{1, 3, 5} {
		if err := s.RecordOverallScore(score); err != nil {
			t.Errorf("Unexpected error for score %d: %v", score, err)
		}
	}
}

func TestSeriesComplete(t *testing.T) {
	s := New(catalog.Default())
	if err := s.SubmitTesterName("Alice"); err != nil {
		t.Fatalf("SubmitTesterName failed: %v", err)
	}
	if err := s.ChooseSeries("DL 系列"); err != nil {
		t.Fatalf("ChooseSeries failed: %v", err)
	}

	// DL 系列共5台
	for i := 0; i < 5; i++ {
		if _, err := s.CompleteMachine(); err != nil {
			t.Fatalf("CompleteMachine %d failed: %v", i, err)
		}
	}

	if s.State() != StateSeriesComplete {
		t.Fatalf("Expected series_complete, got %s", s.State())
	}
	if s.CurrentMachine() != "" {
		t.Errorf("Expected no current machine, got %s", s.CurrentMachine())
	}

	// 系列完成後所有填寫動作都應被拒絕
	if _, err := s.CompleteMachine(); !model.IsErrorType(err, model.ErrCodeState) {
		t.Errorf("Expected state error, got %v", err)
	}
	if err := s.RecordVerdict("觸感體驗", "承靠部位是否舒適？", model.VerdictPass); !model.IsErrorType(err, model.ErrCodeState) {
		t.Errorf("Expected state error, got %v", err)
	}

	if got := s.Progress()["DL 系列"]; got != 5 {
		t.Errorf("Expected DL progress 5, got %d", got)
	}
}

func TestSwitchSeries(t *testing.T) {
	s := newEvaluating(t)

	if _, err := s.CompleteMachine(); err != nil {
		t.Fatalf("CompleteMachine failed: %v", err)
	}

	if err := s.SwitchSeries(); err != nil {
		t.Fatalf("SwitchSeries failed: %v", err)
	}
	if s.State() != StateAwaitingSeriesChoice {
		t.Errorf("Expected awaiting_series_choice, got %s", s.State())
	}

	// 已完成的記錄保留
	if len(s.Records()) == 0 {
		t.Error("Completed records should survive series switch")
	}

	if err := s.ChooseSeries("DL 系列"); err != nil {
		t.Fatalf("ChooseSeries failed: %v", err)
	}
	if s.CurrentMachine() != "DL-03" {
		t.Errorf("Expected DL-03, got %s", s.CurrentMachine())
	}

	// 回到ZL系列時游標重新從頭開始
	if err := s.SwitchSeries(); err != nil {
		t.Fatalf("SwitchSeries failed: %v", err)
	}
	if err := s.ChooseSeries("ZL 系列"); err != nil {
		t.Fatalf("ChooseSeries failed: %v", err)
	}
	if s.CurrentMachine() != "ZL-01" {
		t.Errorf("Expected ZL-01, got %s", s.CurrentMachine())
	}
}

func TestSwitchSeries_InvalidState(t *testing.T) {
	s := New(catalog.Default())
	if err := s.SwitchSeries(); !model.IsErrorType(err, model.ErrCodeState) {
		t.Errorf("Expected state error, got %v", err)
	}
}

func TestReviseMachine(t *testing.T) {
	s := newEvaluating(t)

	// 完成ZL-01與ZL-02
	if err := s.RecordVerdict("觸感體驗", "承靠部位是否舒適？", model.VerdictNG); err != nil {
		t.Fatalf("RecordVerdict failed: %v", err)
	}
	if _, err := s.CompleteMachine(); err != nil {
		t.Fatalf("CompleteMachine failed: %v", err)
	}
	if _, err := s.CompleteMachine(); err != nil {
		t.Fatalf("CompleteMachine failed: %v", err)
	}
	before := len(s.Records())

	// 修正ZL-01：舊記錄移除、游標倒回、從空白重填
	if err := s.ReviseMachine("ZL-01"); err != nil {
		t.Fatalf("ReviseMachine failed: %v", err)
	}
	if s.CurrentMachine() != "ZL-01" {
		t.Errorf("Expected cursor back at ZL-01, got %s", s.CurrentMachine())
	}
	for _, r := range s.Records() {
		if r.MachineCode == "ZL-01" {
			t.Error("Old ZL-01 records should be removed")
		}
	}

	batch, err := s.CompleteMachine()
	if err != nil {
		t.Fatalf("CompleteMachine failed: %v", err)
	}
	// 不回復先前答案，重填從空白開始
	for _, r := range batch.Records {
		if r.Item == "承靠部位是否舒適？" && r.Verdict != model.VerdictUnanswered {
			t.Errorf("Revised machine should start blank, got %s", r.Verdict)
		}
	}
	if len(s.Records()) != before {
		t.Errorf("Expected %d records after revise+complete, got %d", before, len(s.Records()))
	}
	if s.CurrentMachine() != "ZL-02" {
		t.Errorf("Expected cursor at ZL-02 after revise, got %s", s.CurrentMachine())
	}
}

func TestReviseMachine_Errors(t *testing.T) {
	s := newEvaluating(t)

	// 沒有已完成記錄的機台不能修正
	if err := s.ReviseMachine("ZL-02"); !model.IsErrorType(err, model.ErrCodeValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
	if err := s.ReviseMachine("XX-99"); !model.IsErrorType(err, model.ErrCodeValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestResetTesterName(t *testing.T) {
	s := newEvaluating(t)
	if _, err := s.CompleteMachine(); err != nil {
		t.Fatalf("CompleteMachine failed: %v", err)
	}

	s.ResetTesterName()

	if s.State() != StateAwaitingTesterName {
		t.Errorf("Expected awaiting_tester_name, got %s", s.State())
	}
	if s.TesterName() != "" || s.SelectedSeries() != "" {
		t.Error("Name and series should be cleared")
	}
	// 重設姓名不清除歷史記錄
	if len(s.Records()) == 0 {
		t.Error("Completed records should survive name reset")
	}
}

func TestProgress(t *testing.T) {
	s := newEvaluating(t)

	progress := s.Progress()
	if progress["ZL 系列"] != 0 || progress["DL 系列"] != 0 {
		t.Errorf("Expected zero progress, got %v", progress)
	}

	if _, err := s.CompleteMachine(); err != nil {
		t.Fatalf("CompleteMachine failed: %v", err)
	}
	if _, err := s.CompleteMachine(); err != nil {
		t.Fatalf("CompleteMachine failed: %v", err)
	}

	progress = s.Progress()
	if progress["ZL 系列"] != 2 {
		t.Errorf("Expected ZL progress 2, got %d", progress["ZL 系列"])
	}
	if progress["DL 系列"] != 0 {
		t.Errorf("Expected DL progress 0, got %d", progress["DL 系列"])
	}
}

// Package session 實作評估流程狀態機與記錄累積
package session

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/intenza/hfeval/internal/catalog"
	"github.com/intenza/hfeval/internal/model"
)

// State 流程狀態
type State string

// 預定義流程狀態
const (
	// StateAwaitingTesterName 等待輸入測試者姓名
	StateAwaitingTesterName State = "awaiting_tester_name"

	// StateAwaitingSeriesChoice 等待選擇系列
	StateAwaitingSeriesChoice State = "awaiting_series_choice"

	// StateEvaluatingMachine 正在評估某台機器
	StateEvaluatingMachine State = "evaluating_machine"

	// StateSeriesComplete 目前系列已全部填寫完成
	StateSeriesComplete State = "series_complete"
)

// answerKey 暫存答案的鍵：(區塊, 項目)
type answerKey struct {
	Section string
	Item    string
}

// pendingAnswer 單一問題的暫存狀態
type pendingAnswer struct {
	Verdict model.Verdict
	Note    string
}

// Session 一位測試者的評估會話
// 每個動作都是同步、原子套用的狀態轉移；
// 暫存狀態的生命週期只到目前機台完成為止
type Session struct {
	mu sync.Mutex

	// ID 會話ID（UUID）
	ID string `json:"id"`

	catalog *catalog.Catalog

	testerName     string
	selectedSeries string
	machineIndex   int

	pendingAnswers      map[answerKey]*pendingAnswer
	pendingSectionNotes map[string]string
	pendingOverallScore int

	records []*model.Record
}

// New 建立新的評估會話
func New(cat *catalog.Catalog) *Session {
	return &Session{
		ID:                  uuid.New().String(),
		catalog:             cat,
		pendingAnswers:      make(map[answerKey]*pendingAnswer),
		pendingSectionNotes: make(map[string]string),
		pendingOverallScore: model.ScoreDefault,
	}
}

// State 回傳目前流程狀態
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

func (s *Session) state() State {
	switch {
	case s.testerName == "":
		return StateAwaitingTesterName
	case s.selectedSeries == "":
		return StateAwaitingSeriesChoice
	default:
		series, _ := s.catalog.SeriesByName(s.selectedSeries)
		if s.machineIndex >= len(series.Machines) {
			return StateSeriesComplete
		}
		return StateEvaluatingMachine
	}
}

// SubmitTesterName 提交測試者姓名
// 姓名去除前後空白後不得為空；設定後直到明確重設前不可變更
func (s *Session) SubmitTesterName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.testerName != "" {
		return model.NewStateError(string(s.state()), "submit_tester_name", "姓名已設定，請先重新輸入姓名")
	}

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return model.NewValidationError("tester_name", name, "required", "請先輸入姓名再提交")
	}

	s.testerName = trimmed
	return nil
}

// ResetTesterName 重新輸入姓名
// 清除姓名、系列、游標與全部暫存狀態；不清除已完成的記錄
func (s *Session) ResetTesterName() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.testerName = ""
	s.selectedSeries = ""
	s.machineIndex = 0
	s.clearPending()
}

// ChooseSeries 選擇要開始的系列
func (s *Session) ChooseSeries(seriesName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.state(); st != StateAwaitingSeriesChoice {
		return model.NewStateError(string(st), "choose_series", "目前狀態不允許選擇系列")
	}

	if _, ok := s.catalog.SeriesByName(seriesName); !ok {
		return model.NewValidationError("series", seriesName, "known_series", "未知的系列名稱")
	}

	s.selectedSeries = seriesName
	s.machineIndex = 0
	s.clearPending()
	return nil
}

// CurrentMachine 回傳目前進行中的機器代碼，非評估狀態時為空字串
func (s *Session) CurrentMachine() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentMachine()
}

func (s *Session) currentMachine() string {
	if s.selectedSeries == "" {
		return ""
	}
	series, _ := s.catalog.SeriesByName(s.selectedSeries)
	if s.machineIndex >= len(series.Machines) {
		return ""
	}
	return series.Machines[s.machineIndex]
}

// RecordVerdict 記錄判定結果，後寫覆蓋先寫
// 僅接受 Pass / NG；問題必須屬於目錄或目前機台的補充問題
func (s *Session) RecordVerdict(section, item string, verdict model.Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.state(); st != StateEvaluatingMachine {
		return model.NewStateError(string(st), "record_verdict", "目前狀態不允許記錄判定")
	}
	if verdict != model.VerdictPass && verdict != model.VerdictNG {
		return model.NewValidationError("verdict", verdict, "oneof=Pass NG", "判定只能是 Pass 或 NG")
	}
	if !s.knownQuestion(section, item) {
		return model.NewValidationError("item", item, "known_question", "目錄中沒有這個問題")
	}

	key := answerKey{Section: section, Item: item}
	if ans, ok := s.pendingAnswers[key]; ok {
		ans.Verdict = verdict
	} else {
		s.pendingAnswers[key] = &pendingAnswer{Verdict: verdict}
	}
	return nil
}

// RecordNote 記錄單一問題的備註，後寫覆蓋先寫
func (s *Session) RecordNote(section, item, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.state(); st != StateEvaluatingMachine {
		return model.NewStateError(string(st), "record_note", "目前狀態不允許記錄備註")
	}
	if !s.knownQuestion(section, item) {
		return model.NewValidationError("item", item, "known_question", "目錄中沒有這個問題")
	}

	key := answerKey{Section: section, Item: item}
	if ans, ok := s.pendingAnswers[key]; ok {
		ans.Note = text
	} else {
		s.pendingAnswers[key] = &pendingAnswer{Verdict: model.VerdictUnanswered, Note: text}
	}
	return nil
}

// RecordSectionSummary 記錄區塊總結備註，後寫覆蓋先寫
func (s *Session) RecordSectionSummary(section, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.state(); st != StateEvaluatingMachine {
		return model.NewStateError(string(st), "record_section_summary", "目前狀態不允許記錄區塊總結")
	}
	if !s.knownSection(section) {
		return model.NewValidationError("section", section, "known_section", "目錄中沒有這個區塊")
	}

	s.pendingSectionNotes[section] = text
	return nil
}

// RecordOverallScore 記錄整體評分（1~5分），後寫覆蓋先寫
func (s *Session) RecordOverallScore(score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.state(); st != StateEvaluatingMachine {
		return model.NewStateError(string(st), "record_overall_score", "目前狀態不允許記錄評分")
	}
	if score < model.ScoreMin || score > model.ScoreMax {
		return model.NewValidationError("score", score, "1~5", "評分必須介於1到5之間")
	}

	s.pendingOverallScore = score
	return nil
}

// CompleteMachine 完成目前機台
// 將全部暫存狀態物化為一批記錄（共享同一時間戳）、
// 附加到會話歷史、清除暫存、游標前進一格
func (s *Session) CompleteMachine() (*model.RecordBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.state(); st != StateEvaluatingMachine {
		return nil, model.NewStateError(string(st), "complete_machine", "目前沒有進行中的機台")
	}

	batch := s.buildBatch()
	s.records = append(s.records, batch.Records...)
	s.clearPending()
	s.machineIndex++
	return batch, nil
}

// SwitchSeries 切換系列／重新開始
// 從評估中或系列完成狀態回到系列選擇
func (s *Session) SwitchSeries() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state()
	if st != StateEvaluatingMachine && st != StateSeriesComplete {
		return model.NewStateError(string(st), "switch_series", "目前狀態不允許切換系列")
	}

	s.selectedSeries = ""
	s.machineIndex = 0
	s.clearPending()
	return nil
}

// ReviseMachine 修正已完成的機台
// 移除該機台先前的全部記錄、游標倒回該機台位置；
// 不回復先前的答案，測試者從空白狀態重新填寫
func (s *Session) ReviseMachine(machineCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(model.FilterByMachine(s.records, machineCode)) == 0 {
		return model.NewValidationError("machine_code", machineCode, "has_records", "該機台沒有已完成的記錄可修正")
	}

	series, pos, ok := s.catalog.SeriesOf(machineCode)
	if !ok {
		return model.NewValidationError("machine_code", machineCode, "known_machine", "未知的機器代碼")
	}

	s.records = model.RemoveByMachine(s.records, machineCode)
	s.selectedSeries = series.Name
	s.machineIndex = pos
	s.clearPending()
	return nil
}

// TesterName 回傳測試者姓名
func (s *Session) TesterName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.testerName
}

// SelectedSeries 回傳目前選擇的系列名稱，未選擇時為空字串
func (s *Session) SelectedSeries() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedSeries
}

// Records 回傳已完成記錄的快照
func (s *Session) Records() []*model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Progress 各系列的完成度：已完成機台數（去重）
func (s *Session) Progress() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	done := make(map[string]bool)
	for _, r := range s.records {
		done[r.MachineCode] = true
	}

	progress := make(map[string]int, len(s.catalog.Series))
	for _, series := range s.catalog.Series {
		count := 0
		for _, m := range series.Machines {
			if done[m] {
				count++
			}
		}
		progress[series.Name] = count
	}
	return progress
}

// clearPending 清除全部暫存狀態，評分回到預設值
func (s *Session) clearPending() {
	s.pendingAnswers = make(map[answerKey]*pendingAnswer)
	s.pendingSectionNotes = make(map[string]string)
	s.pendingOverallScore = model.ScoreDefault
}

// knownSection 區塊是否存在於目錄
func (s *Session) knownSection(section string) bool {
	for _, sec := range s.catalog.Sections {
		if sec.Name == section {
			return true
		}
	}
	return false
}

// knownQuestion 問題是否屬於目錄區塊或目前機台的補充問題
func (s *Session) knownQuestion(section, item string) bool {
	for _, sec := range s.catalog.Sections {
		if sec.Name != section {
			continue
		}
		for _, q := range sec.Items {
			if q == item {
				return true
			}
		}
		return false
	}

	if section == model.SectionSupplementary {
		for _, q := range s.catalog.SupplementaryFor(s.currentMachine()) {
			if q == item {
				return true
			}
		}
	}
	return false
}

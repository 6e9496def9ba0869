// Package handlers 實作API伺服器的請求處理
package handlers

import (
	"bytes"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/intenza/hfeval/internal/catalog"
	"github.com/intenza/hfeval/internal/database"
	"github.com/intenza/hfeval/internal/model"
	"github.com/intenza/hfeval/internal/queue"
	"github.com/intenza/hfeval/internal/report"
	"github.com/intenza/hfeval/internal/session"
	"github.com/intenza/hfeval/internal/storage"
)

// Handlers API處理器
type Handlers struct {
	db       database.DatabaseInterface
	queue    queue.Client
	storage  storage.StorageInterface
	catalog  *catalog.Catalog
	sessions *session.Store
	hub      *ProgressHub
}

// NewHandlers 建立處理器
func NewHandlers(db database.DatabaseInterface, q queue.Client, st storage.StorageInterface, cat *catalog.Catalog) *Handlers {
	return &Handlers{
		db:       db,
		queue:    q,
		storage:  st,
		catalog:  cat,
		sessions: session.NewStore(cat),
		hub:      NewProgressHub(),
	}
}

// Health 健康檢查
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   "api-server",
	})
}

// Ready 就緒檢查
func (h *Handlers) Ready(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database not available",
		})
		return
	}

	if err := h.queue.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "queue not available",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// GetCatalog 取得評估目錄
func (h *Handlers) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog)
}

// respondError 依錯誤類型對應HTTP狀態碼
// 驗證與狀態錯誤都是對動作的拒絕，Session保持不變
func respondError(c *gin.Context, err error) {
	switch {
	case model.IsErrorType(err, model.ErrCodeValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case model.IsErrorType(err, model.ErrCodeState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case model.IsErrorType(err, model.ErrCodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// sessionView 組裝會話狀態回應
func sessionView(s *session.Session) gin.H {
	return gin.H{
		"id":              s.ID,
		"state":           s.State(),
		"tester":          s.TesterName(),
		"series":          s.SelectedSeries(),
		"current_machine": s.CurrentMachine(),
		"progress":        s.Progress(),
		"record_count":    len(s.Records()),
	}
}

// CreateSession 建立新會話
func (h *Handlers) CreateSession(c *gin.Context) {
	s := h.sessions.Create()
	c.JSON(http.StatusCreated, sessionView(s))
}

// GetSession 取得會話狀態
func (h *Handlers) GetSession(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(s))
}

// SubmitNameRequest 提交姓名請求
type SubmitNameRequest struct {
	Name string `json:"name" binding:"required"`
}

// SubmitName 提交測試者姓名
func (h *Handlers) SubmitName(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req SubmitNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.SubmitTesterName(req.Name); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(s))
}

// ResetName 重新輸入姓名
func (h *Handlers) ResetName(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	s.ResetTesterName()
	c.JSON(http.StatusOK, sessionView(s))
}

// ChooseSeriesRequest 選擇系列請求
type ChooseSeriesRequest struct {
	Series string `json:"series" binding:"required"`
}

// ChooseSeries 選擇系列
func (h *Handlers) ChooseSeries(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req ChooseSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.ChooseSeries(req.Series); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(s))
}

// VerdictRequest 判定請求
type VerdictRequest struct {
	Section string `json:"section" binding:"required"`
	Item    string `json:"item" binding:"required"`
	Verdict string `json:"verdict" binding:"required,oneof=Pass NG"`
}

// RecordVerdict 記錄判定
func (h *Handlers) RecordVerdict(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req VerdictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.RecordVerdict(req.Section, req.Item, model.Verdict(req.Verdict)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(s))
}

// NoteRequest 備註請求
type NoteRequest struct {
	Section string `json:"section" binding:"required"`
	Item    string `json:"item" binding:"required"`
	Note    string `json:"note"`
}

// RecordNote 記錄單項備註
func (h *Handlers) RecordNote(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.RecordNote(req.Section, req.Item, req.Note); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(s))
}

// SectionNoteRequest 區塊總結請求
type SectionNoteRequest struct {
	Section string `json:"section" binding:"required"`
	Note    string `json:"note"`
}

// RecordSectionNote 記錄區塊總結
func (h *Handlers) RecordSectionNote(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req SectionNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.RecordSectionSummary(req.Section, req.Note); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(s))
}

// ScoreRequest 整體評分請求
type ScoreRequest struct {
	Score int `json:"score" binding:"required,min=1,max=5"`
}

// RecordScore 記錄整體評分
func (h *Handlers) RecordScore(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.RecordOverallScore(req.Score); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(s))
}

// CompleteMachine 完成目前機台
// 物化的批次入列給sink worker；入列失敗會回報給呼叫端，
// 但會話狀態不回滾——補送由呼叫端負責
func (h *Handlers) CompleteMachine(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	machine := s.CurrentMachine()
	batch, err := s.CompleteMachine()
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"session":      sessionView(s),
		"batch_id":     batch.BatchID,
		"machine_code": machine,
		"record_count": len(batch.Records),
		"delivered":    true,
	}

	if err := h.queue.EnqueueBatch(c.Request.Context(), batch); err != nil {
		log.Printf("批次入列失敗 - BatchID: %s, Error: %v", batch.BatchID, err)
		resp["delivered"] = false
		resp["sink_error"] = err.Error()
	}

	h.hub.Broadcast(&ProgressEvent{
		SessionID:   s.ID,
		Tester:      batch.Tester,
		MachineCode: batch.MachineCode,
		Series:      s.SelectedSeries(),
		Progress:    s.Progress(),
		State:       string(s.State()),
		Timestamp:   time.Now(),
	})

	c.JSON(http.StatusOK, resp)
}

// SwitchSeries 切換系列／重新開始
func (h *Handlers) SwitchSeries(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := s.SwitchSeries(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(s))
}

// ReviseRequest 修正機台請求
type ReviseRequest struct {
	MachineCode string `json:"machine_code" binding:"required"`
}

// ReviseMachine 修正已完成的機台
// 會話內舊記錄移除、游標倒回；持久層的舊批次一併刪除
func (h *Handlers) ReviseMachine(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req ReviseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.ReviseMachine(req.MachineCode); err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"session": sessionView(s)}
	if err := h.db.DeleteByMachine(c.Request.Context(), s.TesterName(), req.MachineCode); err != nil {
		log.Printf("刪除持久層舊批次失敗 - Machine: %s, Error: %v", req.MachineCode, err)
		resp["sink_error"] = err.Error()
	}

	c.JSON(http.StatusOK, resp)
}

// ExportSession 下載目前會話的記錄 (xlsx)
func (h *Handlers) ExportSession(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	records := s.Records()
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "目前沒有Session資料可下載"})
		return
	}

	var buf bytes.Buffer
	if err := report.WriteRecordsExcel(&buf, records, report.SheetSession); err != nil {
		respondError(c, err)
		return
	}

	fileName := report.SessionFileName(s.TesterName(), time.Now())
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(fileName))
	c.Data(http.StatusOK, storage.ContentTypeXLSX, buf.Bytes())
}

// ListBatches 列出最近的批次中繼資料
func (h *Handlers) ListBatches(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	offset := 0
	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}

	batches, err := h.db.ListBatches(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

// GetBatch 取得單一批次中繼資料
func (h *Handlers) GetBatch(c *gin.Context) {
	batch, err := h.db.GetBatch(c.Request.Context(), c.Param("batch_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// ExportToday 下載某測試者今天已持久化的記錄 (xlsx)
func (h *Handlers) ExportToday(c *gin.Context) {
	tester := c.Query("tester")
	if tester == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少tester參數"})
		return
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	records, err := h.db.ListByTesterSince(c.Request.Context(), tester, midnight)
	if err != nil {
		respondError(c, err)
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "今天尚無資料"})
		return
	}

	var buf bytes.Buffer
	if err := report.WriteRecordsExcel(&buf, records, report.SheetToday); err != nil {
		respondError(c, err)
		return
	}

	fileName := "今日資料_" + tester + "_" + now.Format("20060102") + ".xlsx"
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(fileName))
	c.Data(http.StatusOK, storage.ContentTypeXLSX, buf.Bytes())
}

package handlers

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/intenza/hfeval/internal/model"
	"github.com/intenza/hfeval/internal/report"
	"github.com/intenza/hfeval/internal/storage"
	"github.com/intenza/hfeval/internal/summary"
)

// AnalyzeUploads 分析工具：上傳多個匯出檔並產出彙總報告
// 整合所有檔案的記錄後計算彙總表，
// 產出的分析報告同步歸檔到物件儲存
func (h *Handlers) AnalyzeUploads(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form: " + err.Error()})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "請在側邊欄上傳資料檔案以開始分析"})
		return
	}

	parser := report.NewRecordParser()
	uploadID := uuid.New().String()
	var merged []*model.Record

	for _, fh := range files {
		if ext := filepath.Ext(fh.Filename); ext != ".xlsx" && ext != ".xls" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "只支援Excel檔案 (.xlsx, .xls): " + fh.Filename,
			})
			return
		}

		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "開啟上傳檔失敗: " + fh.Filename})
			return
		}

		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "讀取上傳檔失敗: " + fh.Filename})
			return
		}

		records, err := parser.ParseReader(bytes.NewReader(data))
		if err != nil {
			respondError(c, err)
			return
		}
		merged = append(merged, records...)

		// 上傳原檔一併歸檔，失敗只記錄
		srcObject := fmt.Sprintf("uploads/%s/%s", uploadID, filepath.Base(fh.Filename))
		if err := h.storage.UploadBytes(c.Request.Context(), srcObject, data, storage.ContentTypeXLSX); err != nil {
			log.Printf("歸檔上傳檔失敗 - Object: %s, Error: %v", srcObject, err)
		}
	}

	table := summary.Summarize(merged, h.catalog)

	var buf bytes.Buffer
	if err := report.WriteSummaryExcel(&buf, table); err != nil {
		respondError(c, err)
		return
	}

	// 歸檔報告；歸檔失敗不影響回傳的分析結果
	objectName := fmt.Sprintf("reports/%s/%s", uploadID, report.AnalysisFileName(time.Now()))
	archived := true
	if err := h.storage.UploadBytes(c.Request.Context(), objectName, buf.Bytes(), storage.ContentTypeXLSX); err != nil {
		log.Printf("歸檔分析報告失敗 - Object: %s, Error: %v", objectName, err)
		archived = false
		objectName = ""
	}

	c.JSON(http.StatusOK, gin.H{
		"file_count":    len(files),
		"record_count":  len(merged),
		"summary":       table,
		"report_object": objectName,
		"archived":      archived,
	})
}

// GetReportURL 取得已歸檔報告的預簽名下載URL
func (h *Handlers) GetReportURL(c *gin.Context) {
	objectName := c.Query("object")
	if objectName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少object參數"})
		return
	}

	presigned, err := h.storage.GeneratePresignedURL(c.Request.Context(), objectName, 15*time.Minute)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": presigned})
}

// ListReports 列出已歸檔的分析報告
func (h *Handlers) ListReports(c *gin.Context) {
	files, err := h.storage.ListFiles(c.Request.Context(), "reports/")
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": files})
}

// SummarizeStored 以持久層的全部記錄計算彙總表
// 分析者不上傳檔案時的替代路徑
func (h *Handlers) SummarizeStored(c *gin.Context) {
	records, err := h.db.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	table := summary.Summarize(records, h.catalog)
	c.JSON(http.StatusOK, gin.H{
		"record_count": len(records),
		"summary":      table,
	})
}

// DownloadStoredReport 以持久層的全部記錄產出分析報告 (xlsx)
func (h *Handlers) DownloadStoredReport(c *gin.Context) {
	records, err := h.db.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	table := summary.Summarize(records, h.catalog)

	var buf bytes.Buffer
	if err := report.WriteSummaryExcel(&buf, table); err != nil {
		respondError(c, err)
		return
	}

	fileName := report.AnalysisFileName(time.Now())
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(fileName))
	c.Data(http.StatusOK, storage.ContentTypeXLSX, buf.Bytes())
}

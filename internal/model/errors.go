// Package model 定義自訂錯誤類型
package model

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode 錯誤代碼類型
type ErrorCode string

// 預定義錯誤代碼
const (
	// 通用錯誤
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"

	// 驗證錯誤
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// 狀態機錯誤
	ErrCodeState ErrorCode = "STATE_ERROR"

	// 檔案操作錯誤
	ErrCodeFileReadError  ErrorCode = "FILE_READ_ERROR"
	ErrCodeFileWriteError ErrorCode = "FILE_WRITE_ERROR"
	ErrCodeInvalidFormat  ErrorCode = "INVALID_FORMAT"

	// 解析錯誤
	ErrCodeParseError ErrorCode = "PARSE_ERROR"
)

// BaseError 基礎錯誤結構
type BaseError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error 實作error介面
func (e *BaseError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// GetCode 取得錯誤代碼
func (e *BaseError) GetCode() ErrorCode {
	return e.Code
}

// ValidationError 驗證錯誤
// 動作被拒絕，Session 狀態保持不變
type ValidationError struct {
	BaseError
	Field      string      `json:"field"`
	Value      interface{} `json:"value"`
	Constraint string      `json:"constraint"`
}

// NewValidationError 建立驗證錯誤
func NewValidationError(field string, value interface{}, constraint, message string) *ValidationError {
	return &ValidationError{
		BaseError: BaseError{
			Code:      ErrCodeValidation,
			Message:   message,
			Timestamp: time.Now(),
		},
		Field:      field,
		Value:      value,
		Constraint: constraint,
	}
}

// Error 實作error介面
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] 欄位'%s'驗證失敗: %s (值: %v, 約束: %s)",
		e.Code, e.Field, e.Message, e.Value, e.Constraint)
}

// StateError 狀態機錯誤
// 在不允許的狀態下呼叫了某個動作
type StateError struct {
	BaseError
	State  string `json:"state"`
	Action string `json:"action"`
}

// NewStateError 建立狀態機錯誤
func NewStateError(state, action, message string) *StateError {
	return &StateError{
		BaseError: BaseError{
			Code:      ErrCodeState,
			Message:   message,
			Timestamp: time.Now(),
		},
		State:  state,
		Action: action,
	}
}

// Error 實作error介面
func (e *StateError) Error() string {
	return fmt.Sprintf("[%s] 狀態'%s'不允許動作'%s': %s",
		e.Code, e.State, e.Action, e.Message)
}

// FileError 檔案操作錯誤
type FileError struct {
	BaseError
	FilePath  string `json:"file_path"`
	Operation string `json:"operation"`
	Cause     error  `json:"cause,omitempty"`
}

// NewFileError 建立檔案錯誤
func NewFileError(code ErrorCode, filepath, operation, message string, cause error) *FileError {
	return &FileError{
		BaseError: BaseError{
			Code:      code,
			Message:   message,
			Timestamp: time.Now(),
		},
		FilePath:  filepath,
		Operation: operation,
		Cause:     cause,
	}
}

// Error 實作error介面
func (e *FileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] 檔案操作失敗 %s('%s'): %s (原因: %v)",
			e.Code, e.Operation, e.FilePath, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] 檔案操作失敗 %s('%s'): %s",
		e.Code, e.Operation, e.FilePath, e.Message)
}

// Unwrap 回傳原始錯誤
func (e *FileError) Unwrap() error {
	return e.Cause
}

// ErrorList 錯誤列表
type ErrorList struct {
	Errors []error `json:"errors"`
}

// NewErrorList 建立錯誤列表
func NewErrorList() *ErrorList {
	return &ErrorList{
		Errors: make([]error, 0),
	}
}

// Add 新增錯誤
func (el *ErrorList) Add(err error) {
	if err != nil {
		el.Errors = append(el.Errors, err)
	}
}

// HasError 是否有錯誤
func (el *ErrorList) HasError() bool {
	return len(el.Errors) > 0
}

// Count 錯誤數量
func (el *ErrorList) Count() int {
	return len(el.Errors)
}

// Error 實作error介面
func (el *ErrorList) Error() string {
	if len(el.Errors) == 0 {
		return ""
	}

	if len(el.Errors) == 1 {
		return el.Errors[0].Error()
	}

	var messages []string
	for _, err := range el.Errors {
		messages = append(messages, err.Error())
	}

	return fmt.Sprintf("發生了%d個錯誤: [%s]",
		len(el.Errors), strings.Join(messages, "; "))
}

// IsErrorType 檢查錯誤是否為指定類型
func IsErrorType(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	switch e := err.(type) {
	case *BaseError:
		return e.Code == code
	case *ValidationError:
		return e.Code == code
	case *StateError:
		return e.Code == code
	case *FileError:
		return e.Code == code
	}

	return false
}

// NewNotFoundError 建立未找到錯誤
func NewNotFoundError(message string) error {
	return &BaseError{
		Code:      ErrCodeNotFound,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// SimpleValidationError 建立簡單驗證錯誤
func SimpleValidationError(message string) error {
	return &BaseError{
		Code:      ErrCodeValidation,
		Message:   message,
		Timestamp: time.Now(),
	}
}

package session

import (
	"sync"

	"github.com/intenza/hfeval/internal/catalog"
	"github.com/intenza/hfeval/internal/model"
)

// Store 行程內的會話存放區
// 多個會話（每位測試者一個）彼此完全獨立，只共享唯讀目錄
type Store struct {
	mu       sync.RWMutex
	catalog  *catalog.Catalog
	sessions map[string]*Session
}

// NewStore 建立會話存放區
func NewStore(cat *catalog.Catalog) *Store {
	return &Store{
		catalog:  cat,
		sessions: make(map[string]*Session),
	}
}

// Create 建立新會話並回傳
func (st *Store) Create() *Session {
	s := New(st.catalog)

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()

	return s
}

// Get 依ID取得會話
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()

	if !ok {
		return nil, model.NewNotFoundError("會話不存在: " + id)
	}
	return s, nil
}

// Delete 移除會話
func (st *Store) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Count 目前會話數量
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

package memory

import (
	"sync"
)

// MemStore keeps the latest content of every document. Nothing survives a
// restart.
type MemStore struct {
	mx *sync.Mutex
	db map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		mx: &sync.Mutex{},
		db: make(map[string]string),
	}
}

// GetContent returns the document content, unknown documents are empty.
func (ms *MemStore) GetContent(docID string) string {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	return ms.db[docID]
}

func (ms *MemStore) SetContent(docID, content string) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	ms.db[docID] = content
}

package inmemdb

import (
	"context"
	"sync"

	"github.com/akilisha/darasa/core/user"
)

// ApprovalCache is a map-backed user.ApprovalCache for tests.
type ApprovalCache struct {
	mutex sync.RWMutex
	table map[string]bool
}

var _ user.ApprovalCache = (*ApprovalCache)(nil)

func NewApprovalCache() *ApprovalCache {
	return &ApprovalCache{table: make(map[string]bool)}
}

func (c *ApprovalCache) GetApproval(ctx context.Context, userID string) (approved, cached bool, err error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	approved, cached = c.table[userID]
	return approved, cached, nil
}

func (c *ApprovalCache) SetApproval(ctx context.Context, userID string, approved bool) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.table[userID] = approved
	return nil
}

func (c *ApprovalCache) DeleteApproval(ctx context.Context, userID string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.table, userID)
	return nil
}

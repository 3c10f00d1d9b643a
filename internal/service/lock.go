package service

import (
	"context"
	"sync"
)

// CampaignLocker gives one cycle exclusive use of a campaign.
// ok is false when another holder has it.
type CampaignLocker interface {
	TryLock(ctx context.Context, campaignID int) (unlock func(), ok bool, err error)
}

// LocalLocker serialises campaigns within one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[int]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[int]bool)}
}

func (l *LocalLocker) TryLock(_ context.Context, campaignID int) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[campaignID] {
		return nil, false, nil
	}
	l.held[campaignID] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, campaignID)
			l.mu.Unlock()
		})
	}, true, nil
}

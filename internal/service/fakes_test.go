package service_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	appErrors "github.com/unclebandit/directmail-scheduler/internal/errors"
	"github.com/unclebandit/directmail-scheduler/internal/model"
	"github.com/unclebandit/directmail-scheduler/internal/queue"
	"github.com/unclebandit/directmail-scheduler/internal/repository"
	"github.com/unclebandit/directmail-scheduler/internal/source"
)

// --- Campaign repository ---

type MockCampaignRepo struct {
	mu          sync.Mutex
	campaigns   map[int]*model.Campaign
	lastRunSets []int
}

func newCampaignRepo(cs ...*model.Campaign) *MockCampaignRepo {
	m := &MockCampaignRepo{campaigns: map[int]*model.Campaign{}}
	for _, c := range cs {
		m.campaigns[c.ID] = c
	}
	return m
}

func cloneCampaign(c *model.Campaign) *model.Campaign {
	cp := *c
	cp.Stages = append([]model.FollowUpStage(nil), c.Stages...)
	return &cp
}

func (m *MockCampaignRepo) ListCampaigns(ctx context.Context) ([]*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int, 0, len(m.campaigns))
	for id := range m.campaigns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*model.Campaign, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneCampaign(m.campaigns[id]))
	}
	return out, nil
}

func (m *MockCampaignRepo) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return cloneCampaign(c), nil
}

func (m *MockCampaignRepo) UpdateLastRunningTime(ctx context.Context, campaignID int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRunSets = append(m.lastRunSets, campaignID)
	if c, ok := m.campaigns[campaignID]; ok {
		c.LastRunningTime = at
	}
	return nil
}

// claimStage sets is_run and reports false when it was already set.
func (m *MockCampaignRepo) claimStage(stageID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.campaigns {
		for i := range c.Stages {
			if c.Stages[i].ID == stageID {
				if c.Stages[i].IsRun {
					return false
				}
				c.Stages[i].IsRun = true
				return true
			}
		}
	}
	return false
}

func (m *MockCampaignRepo) stage(id int) model.FollowUpStage {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.campaigns {
		for _, s := range c.Stages {
			if s.ID == id {
				return s
			}
		}
	}
	return model.FollowUpStage{}
}

// --- Lead repository ---

type MockLeadRepo struct {
	mu     sync.Mutex
	rows   map[string]*model.Lead
	nextID int
	saves  int
}

func newLeadRepo() *MockLeadRepo {
	return &MockLeadRepo{rows: map[string]*model.Lead{}}
}

func (m *MockLeadRepo) ExistingKeys(ctx context.Context, keys []string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := map[string]int{}
	for _, k := range keys {
		if l, ok := m.rows[k]; ok {
			found[k] = l.ID
		}
	}
	return found, nil
}

func (m *MockLeadRepo) SaveBatch(ctx context.Context, updates, inserts []model.Lead) (repository.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	var res repository.BatchResult
	for _, u := range updates {
		for _, l := range m.rows {
			if l.ID == u.ID {
				l.CampaignID = u.CampaignID
				res.Updated++
			}
		}
	}
	for _, in := range inserts {
		key := in.NaturalKey()
		if _, dup := m.rows[key]; dup {
			res.Skipped++
			continue
		}
		m.nextID++
		l := in
		l.ID = m.nextID
		m.rows[key] = &l
		res.Inserted++
	}
	return res, nil
}

func (m *MockLeadRepo) ListEligible(ctx context.Context, campaignID int) ([]model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Lead{}
	for id := 1; id <= m.nextID; id++ {
		for _, l := range m.rows {
			if l.ID == id && l.CampaignID == campaignID && !l.Blacklisted {
				out = append(out, *l)
			}
		}
	}
	return out, nil
}

func (m *MockLeadRepo) CountEligible(ctx context.Context, campaignID int) (int, error) {
	leads, err := m.ListEligible(ctx, campaignID)
	return len(leads), err
}

func (m *MockLeadRepo) seed(campaignID int, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		m.nextID++
		m.rows[k] = &model.Lead{ID: m.nextID, CampaignID: campaignID, RadarID: k, FirstName: "Owner " + k}
	}
}

// --- Print history ---

// MockHistoryRepo claims stages on campaigns. failAt makes the n-th row of the
// next failures batches fail, leaving nothing written.
type MockHistoryRepo struct {
	mu        sync.Mutex
	entries   []model.PrintHistoryEntry
	campaigns *MockCampaignRepo
	failAt    int
	failures  int
}

func (m *MockHistoryRepo) Append(ctx context.Context, e *model.PrintHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = len(m.entries) + 1
	m.entries = append(m.entries, *e)
	return nil
}

func (m *MockHistoryRepo) CompleteStage(ctx context.Context, stageID int, entries []model.PrintHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 && m.failAt > 0 && m.failAt <= len(entries) {
		m.failures--
		return fmt.Errorf("insert print history row %d: connection reset", m.failAt)
	}
	if m.campaigns != nil && !m.campaigns.claimStage(stageID) {
		return appErrors.ErrStageAlreadyRun
	}
	for _, e := range entries {
		e.ID = len(m.entries) + 1
		m.entries = append(m.entries, e)
	}
	return nil
}

func (m *MockHistoryRepo) Count(ctx context.Context, f repository.HistoryFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.PrintedAt.Before(f.From) || !e.PrintedAt.Before(f.To) {
			continue
		}
		if f.CampaignID != 0 && e.CampaignID != f.CampaignID {
			continue
		}
		if f.StageID != 0 && e.StageID != f.StageID {
			continue
		}
		n++
	}
	return n, nil
}

// --- Record source ---

type MockSource struct {
	mu       sync.Mutex
	pages    [][]source.Record
	calls    int
	starts   []int
	failAt   int // 1-based call that returns an error
	statusAt int // 1-based call that returns a non-success page
}

func pagesOfSizes(sizes ...int) [][]source.Record {
	pages := [][]source.Record{}
	n := 0
	for _, size := range sizes {
		page := make([]source.Record, size)
		for i := range page {
			n++
			page[i] = source.Record{RadarID: fmt.Sprintf("R%d", n), Address: fmt.Sprintf("%d Main St", n), OwnerFirstName: "Ann"}
		}
		pages = append(pages, page)
	}
	return pages
}

func (m *MockSource) FetchPage(ctx context.Context, filters string, start, limit int) (*source.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.starts = append(m.starts, start)
	if m.failAt == m.calls {
		return nil, appErrors.Wrap(appErrors.KindSourceUnavailable, "fetch", errors.New("timeout"))
	}
	if m.statusAt == m.calls {
		return &source.Page{Success: false, StatusCode: 503}, nil
	}
	idx := start / limit
	if idx >= len(m.pages) {
		return &source.Page{Success: true}, nil
	}
	return &source.Page{Records: m.pages[idx], Success: true}, nil
}

// --- Rendering collaborators ---

type MockTemplates struct{ missing map[string]bool }

func (m MockTemplates) Resolve(id string) (string, error) {
	if m.missing[id] {
		return "", errors.New("not found")
	}
	return "/templates/" + id + ".html", nil
}

// MockRenderer writes a document per call. Templates containing "boom" fail, "panic" panics.
type MockRenderer struct {
	mu    sync.Mutex
	calls []string
	delay time.Duration
}

func (r *MockRenderer) Render(ctx context.Context, templatePath string, leads []model.Lead, outputDir, baseName string) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, templatePath)
	r.mu.Unlock()
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if strings.Contains(templatePath, "boom") {
		return "", errors.New("template fill failed")
	}
	if strings.Contains(templatePath, "panic") {
		panic("renderer crashed")
	}
	path := filepath.Join(outputDir, baseName+".html")
	return path, os.WriteFile(path, []byte("doc"), 0o644)
}

// MockConverter writes <doc>.pdf unless skip is set.
type MockConverter struct{ skip bool }

func (c MockConverter) Convert(ctx context.Context, docPath string) (string, error) {
	out := strings.TrimSuffix(docPath, ".html") + ".pdf"
	if c.skip {
		return out, nil
	}
	return out, os.WriteFile(out, []byte("%PDF"), 0o644)
}

type MockPrinter struct {
	mu   sync.Mutex
	jobs []queue.PrintJob
}

func (p *MockPrinter) Dispatch(ctx context.Context, job queue.PrintJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	return nil
}

type MockCounter struct {
	n   int
	err error
}

func (c MockCounter) CountRecords(ctx context.Context, filters string) (int, error) {
	return c.n, c.err
}

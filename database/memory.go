package database

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/ortelius/depchain/model"
	"github.com/ortelius/depchain/util"
)

// MemoryStore keeps analyses in process memory. Contents are lost on exit.
type MemoryStore struct {
	mu       sync.RWMutex
	next     int
	analyses map[string]*model.Analysis
	order    []string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{analyses: make(map[string]*model.Analysis)}
}

// SaveAnalysis stores a copy of the analysis under a new key
func (m *MemoryStore) SaveAnalysis(_ context.Context, analysis *model.Analysis) (string, error) {
	if analysis == nil {
		return "", fmt.Errorf("analysis is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	key := strconv.Itoa(m.next)

	stored := *analysis
	stored.Key = key
	if stored.ObjType == "" {
		stored.ObjType = "Analysis"
	}
	stored.Findings = append([]model.Finding(nil), analysis.Findings...)

	m.analyses[key] = &stored
	m.order = append(m.order, key)
	return key, nil
}

// GetAnalysis returns a copy of the stored analysis, nil when not found
func (m *MemoryStore) GetAnalysis(_ context.Context, key string) (*model.Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.analyses[key]
	if !ok {
		return nil, nil
	}
	analysis := *stored
	analysis.Findings = append([]model.Finding(nil), stored.Findings...)
	return &analysis, nil
}

// ListAnalyses returns the newest analyses first
func (m *MemoryStore) ListAnalyses(_ context.Context, limit int) ([]model.AnalysisListItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]model.AnalysisListItem, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		a := m.analyses[m.order[i]]
		items = append(items, model.AnalysisListItem{
			Key:       a.Key,
			Project:   a.Project,
			Version:   a.Version,
			CreatedAt: a.CreatedAt,
			Total:     a.Summary.Total,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// AffectedAnalyses returns every analysis with a finding whose base purl matches purl
func (m *MemoryStore) AffectedAnalyses(_ context.Context, purl string) ([]model.AffectedAnalysis, error) {
	base, err := util.GetBasePURL(purl)
	if err != nil {
		return nil, fmt.Errorf("invalid purl %s: %w", purl, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	affected := []model.AffectedAnalysis{}
	for i := len(m.order) - 1; i >= 0; i-- {
		a := m.analyses[m.order[i]]
		for _, f := range a.Findings {
			if basePurl(f) != base {
				continue
			}
			affected = append(affected, model.AffectedAnalysis{
				AnalysisKey:    a.Key,
				Project:        a.Project,
				Version:        a.Version,
				Package:        f.Package,
				Severity:       f.Severity,
				DependencyType: f.DependencyType,
				Strategy:       f.Strategy,
			})
		}
	}
	return affected, nil
}

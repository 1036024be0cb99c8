package store

import (
	"context"
	"sort"
	"sync"

	"github.com/joescharf/issuetracker/internal/models"
)

// MemoryStore implements Store with a process-local table from project
// name to an ordered issue slice. Nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex // guards projects and every issue it holds
	projects map[string][]*models.Issue
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{projects: make(map[string][]*models.Issue)}
}

func (m *MemoryStore) CreateIssue(_ context.Context, project string, issue *models.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[project] = append(m.projects[project], issue.Clone())
	return nil
}

func (m *MemoryStore) ListIssues(_ context.Context, project string, filter IssueFilter) ([]*models.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	issues := make([]*models.Issue, 0, len(m.projects[project]))
	for _, issue := range m.projects[project] {
		if filter.Match(issue) {
			issues = append(issues, issue.Clone())
		}
	}
	return issues, nil
}

func (m *MemoryStore) UpdateIssue(_ context.Context, project, id string, mutate func(*models.Issue)) (*models.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(project, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	issue := m.projects[project][i]
	mutate(issue)
	return issue.Clone(), nil
}

func (m *MemoryStore) DeleteIssue(_ context.Context, project, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(project, id)
	if i < 0 {
		return ErrNotFound
	}
	issues := m.projects[project]
	// The collection stays registered even when it becomes empty.
	m.projects[project] = append(issues[:i:i], issues[i+1:]...)
	return nil
}

func (m *MemoryStore) Projects(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.projects))
	for name := range m.projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) Close() error { return nil }

// indexOf must be called with mu held.
func (m *MemoryStore) indexOf(project, id string) int {
	for i, issue := range m.projects[project] {
		if issue.ID == id {
			return i
		}
	}
	return -1
}

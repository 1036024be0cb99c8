package store

import (
	"context"
	"errors"

	"github.com/joescharf/issuetracker/internal/models"
)

// ErrNotFound is returned when a project or issue cannot be resolved.
var ErrNotFound = errors.New("issue not found")

// IssueFilter specifies conjunctive equality filters for listing issues.
// Unset fields do not constrain the result.
type IssueFilter struct {
	ID         models.Optional[string]
	Title      models.Optional[string]
	Text       models.Optional[string]
	CreatedBy  models.Optional[string]
	AssignedTo models.Optional[string]
	StatusText models.Optional[string]
	Open       models.Optional[bool]
}

// NewIssueFilter builds a filter from query values. Empty values are not
// filters; open is parsed with models.ParseOpen.
func NewIssueFilter(values map[string]string) IssueFilter {
	var f IssueFilter
	str := func(key string, dst *models.Optional[string]) {
		if v := values[key]; v != "" {
			*dst = models.Some(v)
		}
	}
	str(models.FieldID, &f.ID)
	str(models.FieldTitle, &f.Title)
	str(models.FieldText, &f.Text)
	str(models.FieldCreatedBy, &f.CreatedBy)
	str(models.FieldAssignedTo, &f.AssignedTo)
	str(models.FieldStatusText, &f.StatusText)
	if v := values[models.FieldOpen]; v != "" {
		f.Open = models.Some(models.ParseOpen(v))
	}
	return f
}

// Match reports whether issue satisfies every set filter.
func (f IssueFilter) Match(issue *models.Issue) bool {
	eq := func(o models.Optional[string], v string) bool {
		return !o.Set || o.Value == v
	}
	return eq(f.ID, issue.ID) &&
		eq(f.Title, issue.Title) &&
		eq(f.Text, issue.Text) &&
		eq(f.CreatedBy, issue.CreatedBy) &&
		eq(f.AssignedTo, issue.AssignedTo) &&
		eq(f.StatusText, issue.StatusText) &&
		(!f.Open.Set || f.Open.Value == issue.Open)
}

// Store defines the persistence interface for project-scoped issues.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateIssue appends issue to the project's collection, creating the
	// collection if needed.
	CreateIssue(ctx context.Context, project string, issue *models.Issue) error
	// ListIssues returns the project's issues matching filter in insertion
	// order. An unknown project yields an empty slice.
	ListIssues(ctx context.Context, project string, filter IssueFilter) ([]*models.Issue, error)
	// UpdateIssue finds the issue and applies mutate to it atomically,
	// returning the stored result. ErrNotFound if the project or id is unknown.
	UpdateIssue(ctx context.Context, project, id string, mutate func(*models.Issue)) (*models.Issue, error)
	// DeleteIssue removes the issue, preserving the order of the rest.
	DeleteIssue(ctx context.Context, project, id string) error
	// Projects returns the names of all known project collections.
	Projects(ctx context.Context) ([]string, error)

	Close() error
}

// Package tracker implements the project-scoped issue operations: the
// validation rules, defaults and timestamps that sit between a transport
// (HTTP, MCP) and a store.Store.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/store"
)

// Service runs the four issue operations against an injected store.
type Service struct {
	store store.Store
	ids   *IDGenerator
	now   func() time.Time
	log   *slog.Logger
}

// New creates a Service over s. A nil logger falls back to slog.Default().
func New(s store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store: s,
		ids:   NewIDGenerator(),
		now:   time.Now,
		log:   log,
	}
}

// CreateInput holds the fields accepted when creating an issue.
type CreateInput struct {
	Title      string
	Text       string
	CreatedBy  string
	AssignedTo string
	StatusText string
}

// CreateInputFromFields reads a CreateInput from decoded request fields.
func CreateInputFromFields(fields map[string]string) CreateInput {
	return CreateInput{
		Title:      fields[models.FieldTitle],
		Text:       fields[models.FieldText],
		CreatedBy:  fields[models.FieldCreatedBy],
		AssignedTo: fields[models.FieldAssignedTo],
		StatusText: fields[models.FieldStatusText],
	}
}

// List returns the project's issues matching every filter, in insertion
// order. An unknown project yields an empty, non-nil slice.
func (s *Service) List(ctx context.Context, project string, filter store.IssueFilter) ([]*models.Issue, error) {
	issues, err := s.store.ListIssues(ctx, project, filter)
	if err != nil {
		return nil, fmt.Errorf("list issues for %s: %w", project, err)
	}
	if issues == nil {
		issues = []*models.Issue{}
	}
	return issues, nil
}

// Create validates in and appends a new open issue to the project.
func (s *Service) Create(ctx context.Context, project string, in CreateInput) (*models.Issue, error) {
	if in.Title == "" || in.Text == "" || in.CreatedBy == "" {
		return nil, &Error{Op: OpCreate, Err: ErrMissingRequiredField}
	}

	now := s.now().UTC()
	issue := &models.Issue{
		ID:         s.ids.New(),
		Title:      in.Title,
		Text:       in.Text,
		CreatedBy:  in.CreatedBy,
		AssignedTo: in.AssignedTo,
		StatusText: in.StatusText,
		CreatedOn:  now,
		UpdatedOn:  now,
		Open:       true,
	}
	if err := s.store.CreateIssue(ctx, project, issue); err != nil {
		return nil, fmt.Errorf("create issue in %s: %w", project, err)
	}

	s.log.Debug("issue created", "project", project, "id", issue.ID)
	return issue, nil
}

// Update applies the provided fields of patch to the issue and refreshes
// updated_on. Checks run in order: missing id, empty patch, unknown issue.
func (s *Service) Update(ctx context.Context, project, id string, patch models.IssuePatch) (*models.Issue, error) {
	if id == "" {
		return nil, &Error{Op: OpUpdate, Err: ErrMissingIdentifier}
	}
	if patch.Empty() {
		return nil, &Error{Op: OpUpdate, ID: id, Err: ErrNoUpdateFields}
	}

	updated, err := s.store.UpdateIssue(ctx, project, id, func(issue *models.Issue) {
		patch.Apply(issue)
		if now := s.now().UTC(); now.After(issue.UpdatedOn) {
			issue.UpdatedOn = now
		}
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, &Error{Op: OpUpdate, ID: id, Err: ErrNotFound}
	}
	if err != nil {
		return nil, fmt.Errorf("update issue %s in %s: %w", id, project, err)
	}

	s.log.Debug("issue updated", "project", project, "id", id)
	return updated, nil
}

// Delete removes the issue from the project.
func (s *Service) Delete(ctx context.Context, project, id string) error {
	if id == "" {
		return &Error{Op: OpDelete, Err: ErrMissingIdentifier}
	}

	err := s.store.DeleteIssue(ctx, project, id)
	if errors.Is(err, store.ErrNotFound) {
		return &Error{Op: OpDelete, ID: id, Err: ErrNotFound}
	}
	if err != nil {
		return fmt.Errorf("delete issue %s in %s: %w", id, project, err)
	}

	s.log.Debug("issue deleted", "project", project, "id", id)
	return nil
}

// Projects returns the names of all project collections created so far.
func (s *Service) Projects(ctx context.Context) ([]string, error) {
	return s.store.Projects(ctx)
}

package models

import "time"

// Issue is a single trackable record within a project collection.
// JSON field names and order match the public API.
type Issue struct {
	ID         string    `json:"_id"`
	Title      string    `json:"issue_title"`
	Text       string    `json:"issue_text"`
	CreatedBy  string    `json:"created_by"`
	AssignedTo string    `json:"assigned_to"`
	StatusText string    `json:"status_text"`
	CreatedOn  time.Time `json:"created_on"`
	UpdatedOn  time.Time `json:"updated_on"`
	Open       bool      `json:"open"`
}

// Clone returns a copy of the issue that shares no state with the original.
func (i *Issue) Clone() *Issue {
	c := *i
	return &c
}

// Request field names shared by the HTTP, MCP and CLI surfaces.
const (
	FieldID         = "_id"
	FieldTitle      = "issue_title"
	FieldText       = "issue_text"
	FieldCreatedBy  = "created_by"
	FieldAssignedTo = "assigned_to"
	FieldStatusText = "status_text"
	FieldOpen       = "open"
)

// UpdatableFields lists the fields an update request may carry besides _id.
var UpdatableFields = []string{
	FieldTitle,
	FieldText,
	FieldCreatedBy,
	FieldAssignedTo,
	FieldStatusText,
	FieldOpen,
}

// ParseOpen maps the open flag from its wire form. Only the exact,
// case-sensitive string "true" is true; every other value is false.
func ParseOpen(s string) bool {
	return s == "true"
}

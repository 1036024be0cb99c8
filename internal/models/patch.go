package models

// Optional wraps a value together with whether it was provided at all.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns a provided Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// IssuePatch is a partial update. Only fields with Set == true are applied,
// so a client can deliberately set a field to its zero value.
type IssuePatch struct {
	Title      Optional[string]
	Text       Optional[string]
	CreatedBy  Optional[string]
	AssignedTo Optional[string]
	StatusText Optional[string]
	Open       Optional[bool]
}

// PatchFromFields builds a patch from decoded request fields. Presence of
// a key marks the field as provided; open is parsed with ParseOpen.
func PatchFromFields(fields map[string]string) IssuePatch {
	var p IssuePatch
	str := func(key string, dst *Optional[string]) {
		if v, ok := fields[key]; ok {
			*dst = Some(v)
		}
	}
	str(FieldTitle, &p.Title)
	str(FieldText, &p.Text)
	str(FieldCreatedBy, &p.CreatedBy)
	str(FieldAssignedTo, &p.AssignedTo)
	str(FieldStatusText, &p.StatusText)
	if v, ok := fields[FieldOpen]; ok {
		p.Open = Some(ParseOpen(v))
	}
	return p
}

// Empty reports whether no field was provided.
func (p IssuePatch) Empty() bool {
	return !p.Title.Set && !p.Text.Set && !p.CreatedBy.Set &&
		!p.AssignedTo.Set && !p.StatusText.Set && !p.Open.Set
}

// Apply merges the provided fields into issue. Required fields keep their
// previous value when the patch carries an empty string for them.
func (p IssuePatch) Apply(issue *Issue) {
	setRequired := func(o Optional[string], dst *string) {
		if o.Set && o.Value != "" {
			*dst = o.Value
		}
	}
	setRequired(p.Title, &issue.Title)
	setRequired(p.Text, &issue.Text)
	setRequired(p.CreatedBy, &issue.CreatedBy)

	if p.AssignedTo.Set {
		issue.AssignedTo = p.AssignedTo.Value
	}
	if p.StatusText.Set {
		issue.StatusText = p.StatusText.Value
	}
	if p.Open.Set {
		issue.Open = p.Open.Value
	}
}

package vector

import "fmt"

// Filter is a backend-agnostic metadata predicate. Stores translate it to
// their native query form: SQL for pgvector, direct evaluation in memory.
// A nil Filter means no restriction.
type Filter interface {
	isFilter()
}

// Equals matches records whose field equals value.
type Equals struct {
	Field string
	Value string
}

// In matches records whose field is one of values.
type In struct {
	Field  string
	Values []string
}

// And matches records satisfying every member predicate.
type And []Filter

func (Equals) isFilter() {}
func (In) isFilter()     {}
func (And) isFilter()    {}

// BuildFilter composes the scope predicate for a search or delete from the
// requested space ids and optional filename.
//
// A nil spaceIDs slice means "all spaces"; an explicit empty slice is a
// caller error, not an unrestricted search.
func BuildFilter(spaceIDs []string, filename string) (Filter, error) {
	if spaceIDs != nil && len(spaceIDs) == 0 {
		return nil, fmt.Errorf("%w: empty space id set", ErrInvalidFilter)
	}

	var parts []Filter
	switch {
	case len(spaceIDs) == 1:
		parts = append(parts, Equals{Field: FieldSpaceID, Value: spaceIDs[0]})
	case len(spaceIDs) > 1:
		parts = append(parts, In{Field: FieldSpaceID, Values: spaceIDs})
	}
	if filename != "" {
		parts = append(parts, Equals{Field: FieldFilename, Value: filename})
	}

	switch len(parts) {
	case 0:
		return nil, nil
	case 1:
		return parts[0], nil
	default:
		return And(parts), nil
	}
}

// matches evaluates a filter against a record. Used by the in-memory store.
func matches(f Filter, r Record) bool {
	switch v := f.(type) {
	case nil:
		return true
	case Equals:
		return fieldValue(r, v.Field) == v.Value
	case In:
		got := fieldValue(r, v.Field)
		for _, want := range v.Values {
			if got == want {
				return true
			}
		}
		return false
	case And:
		for _, sub := range v {
			if !matches(sub, r) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func fieldValue(r Record, field string) string {
	switch field {
	case FieldSpaceID:
		return r.SpaceID
	case FieldFilename:
		return r.Filename
	default:
		return ""
	}
}

package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFilterUnrestricted(t *testing.T) {
	f, err := BuildFilter(nil, "")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestBuildFilterEmptySpaceSetIsError(t *testing.T) {
	_, err := BuildFilter([]string{}, "")
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = BuildFilter([]string{}, "f.txt")
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestBuildFilterSingleSpace(t *testing.T) {
	f, err := BuildFilter([]string{"s1"}, "")
	require.NoError(t, err)
	assert.Equal(t, Equals{Field: FieldSpaceID, Value: "s1"}, f)
}

func TestBuildFilterMultipleSpaces(t *testing.T) {
	f, err := BuildFilter([]string{"s1", "s2"}, "")
	require.NoError(t, err)
	assert.Equal(t, In{Field: FieldSpaceID, Values: []string{"s1", "s2"}}, f)
}

func TestBuildFilterFilenameOnly(t *testing.T) {
	f, err := BuildFilter(nil, "f.txt")
	require.NoError(t, err)
	assert.Equal(t, Equals{Field: FieldFilename, Value: "f.txt"}, f)
}

func TestBuildFilterConjunction(t *testing.T) {
	f, err := BuildFilter([]string{"s1"}, "f.txt")
	require.NoError(t, err)
	assert.Equal(t, And{
		Equals{Field: FieldSpaceID, Value: "s1"},
		Equals{Field: FieldFilename, Value: "f.txt"},
	}, f)
}

func TestToPredicateSQL(t *testing.T) {
	f, err := BuildFilter([]string{"s1"}, "f.txt")
	require.NoError(t, err)

	pred, err := toPredicate(f)
	require.NoError(t, err)

	sql, args, err := pred.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(space_id = ? AND filename = ?)", sql)
	assert.Equal(t, []interface{}{"s1", "f.txt"}, args)
}

func TestToPredicateMembershipSQL(t *testing.T) {
	pred, err := toPredicate(In{Field: FieldSpaceID, Values: []string{"s1", "s2"}})
	require.NoError(t, err)

	sql, args, err := pred.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "space_id IN (?,?)", sql)
	assert.Equal(t, []interface{}{"s1", "s2"}, args)
}

func TestToPredicateRejectsUnknownField(t *testing.T) {
	_, err := toPredicate(Equals{Field: "owner; DROP TABLE chunks", Value: "x"})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestToPredicateRejectsEmptyMembership(t *testing.T) {
	_, err := toPredicate(In{Field: FieldSpaceID})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestMatchesEvaluatesFilters(t *testing.T) {
	rec := Record{SpaceID: "s1", Filename: "a.txt"}

	assert.True(t, matches(nil, rec))
	assert.True(t, matches(Equals{Field: FieldSpaceID, Value: "s1"}, rec))
	assert.False(t, matches(Equals{Field: FieldSpaceID, Value: "s2"}, rec))
	assert.True(t, matches(In{Field: FieldSpaceID, Values: []string{"s2", "s1"}}, rec))
	assert.False(t, matches(In{Field: FieldSpaceID, Values: []string{"s2", "s3"}}, rec))
	assert.True(t, matches(And{
		Equals{Field: FieldSpaceID, Value: "s1"},
		Equals{Field: FieldFilename, Value: "a.txt"},
	}, rec))
	assert.False(t, matches(And{
		Equals{Field: FieldSpaceID, Value: "s1"},
		Equals{Field: FieldFilename, Value: "b.txt"},
	}, rec))
}

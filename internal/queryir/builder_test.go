package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/ir"
)

func TestBuildSimplePlan(t *testing.T) {
	gt := mustLeaf(t, fAge, OpGt, ir.IRInt(15))

	plan, err := From("person").
		Filter(gt).
		SortBy(fName, Asc).
		Limit(10).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "person", plan.Source())
	assert.Same(t, gt, plan.Filter())
	assert.Equal(t, []Sort{{Field: fName, Direction: Asc}}, plan.Sorts())
	assert.Equal(t, 0, plan.Skip())
	limit, ok := plan.Limit()
	assert.True(t, ok)
	assert.Equal(t, 10, limit)
	_, hasAcc := plan.Accumulation()
	assert.False(t, hasAcc)
}

func TestFilterAndsWithExistingRoot(t *testing.T) {
	a := mustLeaf(t, fAge, OpGt, ir.IRInt(15))
	b := mustLeaf(t, fName, OpEq, ir.IRString("b"))

	plan, err := From("person").Filter(a).Filter(b).Build()
	require.NoError(t, err)

	root, ok := plan.Filter().(*Composite)
	require.True(t, ok)
	assert.Equal(t, CombineAnd, root.Kind())
	assert.Equal(t, []Constraint{a, b}, root.Children())
}

func TestSkipAndLimitLastCallWins(t *testing.T) {
	plan, err := From("person").Skip(5).Skip(2).Limit(1).Limit(3).Build()
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Skip())
	limit, _ := plan.Limit()
	assert.Equal(t, 3, limit)

	plan, err = From("person").Limit(0).Build()
	require.NoError(t, err)
	limit, ok := plan.Limit()
	assert.True(t, ok)
	assert.Zero(t, limit)
}

func TestBuildRejectsInvalidPlans(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
		reason  string
	}{
		{"negative skip", From("person").Skip(-1), "skip -1"},
		{"negative limit", From("person").Limit(-5), "limit -5"},
		{"negative limit overridden too late", From("person").Limit(5).Limit(-1), "limit -1"},
		{"no source", From(""), "no source"},
		{"accumulation with selection", From("person").Select(fName).Accumulate(Avg(fAge)), "field selection"},
		{"sorted ungrouped accumulation", From("person").Accumulate(Avg(fAge)).SortBy(fAge, Asc), "ungrouped"},
		{"sort on non-key", From("person").Accumulate(Avg(fAge).GroupedBy(fActive)).SortBy(fName, Asc), "grouping key"},
		{"avg of string", From("person").Accumulate(Avg(fName)), "numeric"},
		{"max of bool", From("person").Accumulate(Max(fActive)), "ordered"},
		{"distinct option on min", From("person").Accumulate(Min(fAge).WithDistinct()), "distinct option"},
		{"distinct count all", From("person").Accumulate(Count().WithDistinct()), "count(*)"},
		{"group by list", From("person").Accumulate(Count().GroupedBy(fTags)), "list field"},
		{"nil child", From("person").Filter(And(mustLeaf(t, fAge, OpGt, ir.IRInt(1)), nil)), "nil"},
		{"bad sort field", From("person").SortBy(Field{Name: "x"}, Desc), "unknown domain"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.builder.Build()
			require.Error(t, err)
			assert.True(t, fault.IsInvalidQuery(err), "got %v", err)
			assert.Contains(t, err.Error(), tc.reason)
		})
	}
}

func TestGroupedAccumulationMaySortByKey(t *testing.T) {
	plan, err := From("person").
		Accumulate(Avg(fAge).WithDistinct().GroupedBy(fActive)).
		SortBy(fActive, Desc).
		Build()
	require.NoError(t, err)

	acc, ok := plan.Accumulation()
	require.True(t, ok)
	assert.Equal(t, AccAvg, acc.Func)
	assert.True(t, acc.Distinct)
	assert.True(t, acc.Grouped())
	assert.Equal(t, []Field{fActive}, acc.GroupBy)
}

func TestPlanIsImmutable(t *testing.T) {
	b := From("person").SortBy(fName, Asc).Select(fName)
	plan, err := b.Build()
	require.NoError(t, err)

	b.SortBy(fAge, Desc).Select(fAge).Limit(4)
	assert.Len(t, plan.Sorts(), 1)
	assert.Len(t, plan.Projection(), 1)
	_, hasLimit := plan.Limit()
	assert.False(t, hasLimit)

	sorts := plan.Sorts()
	sorts[0].Direction = Desc
	assert.Equal(t, Asc, plan.Sorts()[0].Direction)
}

func TestPlanBuilderDerivesWithoutMutation(t *testing.T) {
	plan, err := From("person").SortBy(fName, Asc).Skip(4).Build()
	require.NoError(t, err)

	first, err := plan.Builder().Limit(1).SortBy(fAge, Desc).Build()
	require.NoError(t, err)

	limit, ok := first.Limit()
	assert.True(t, ok)
	assert.Equal(t, 1, limit)
	assert.Equal(t, 4, first.Skip())
	assert.Len(t, first.Sorts(), 2)

	_, ok = plan.Limit()
	assert.False(t, ok)
	assert.Len(t, plan.Sorts(), 1)
}

func TestAccumulationConstructors(t *testing.T) {
	assert.True(t, Count().CountAll())
	assert.False(t, CountOf(fName).CountAll())
	assert.Equal(t, AccDistinct, DistinctValues(fName).Func)
	assert.Equal(t, AccSum, Sum(fAge).Func)
	assert.Equal(t, AccMin, Min(fBirthday).Func)
	assert.Equal(t, AccMax, Max(fName).Func)

	base := Count().GroupedBy(fActive)
	extended := base.GroupedBy(fGrade)
	assert.Len(t, base.GroupBy, 1)
	assert.Len(t, extended.GroupBy, 2)

	for fn := range accNames {
		parsed, err := ParseAccFunc(fn.String())
		require.NoError(t, err)
		assert.Equal(t, fn, parsed)
	}
}

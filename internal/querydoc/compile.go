package querydoc

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/roach88/typewriter/internal/codec"
	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/queryir"
)

// Command is a compiled plan for a document store.
type Command struct {
	Collection string

	// Filter selects documents. It is empty, never nil, when the plan has
	// no constraint.
	Filter bson.D

	Sort       bson.D
	Projection bson.D
	Skip       int64
	Limit      int64
	HasLimit   bool

	// Pipeline is set for accumulations and replaces the find fields above
	// (Filter is repeated as its $match stage).
	Pipeline []bson.D

	// Columns describes the result fields of an accumulation.
	Columns []queryir.Field
}

// IsAggregate reports whether c runs as an aggregation pipeline.
func (c Command) IsAggregate() bool { return c.Pipeline != nil }

// Empty reports whether c can match nothing because its limit is zero.
// Document stores read a zero limit as "no limit", so callers must not
// send such a command.
func (c Command) Empty() bool { return c.HasLimit && c.Limit == 0 }

// FindOptions converts the find fields of c to driver options.
func (c Command) FindOptions() *options.FindOptionsBuilder {
	opts := options.Find()
	if len(c.Sort) > 0 {
		opts.SetSort(c.Sort)
	}
	if len(c.Projection) > 0 {
		opts.SetProjection(c.Projection)
	}
	if c.Skip > 0 {
		opts.SetSkip(c.Skip)
	}
	if c.HasLimit {
		opts.SetLimit(c.Limit)
	}
	return opts
}

// Compiler translates plans into document commands.
type Compiler struct {
	codecs *codec.Registry
}

// NewCompiler creates a compiler. A nil registry selects codec.Default.
func NewCompiler(reg *codec.Registry) *Compiler {
	if reg == nil {
		reg = codec.Default
	}
	return &Compiler{codecs: reg}
}

// Compile translates p. Constraints outside queryir.DocumentSubset fail
// with *fault.UnsupportedConstraintError before anything else is built.
func (c *Compiler) Compile(p queryir.Plan) (Command, error) {
	filter, err := c.Filter(p)
	if err != nil {
		return Command{}, err
	}
	limit, hasLimit := p.Limit()
	cmd := Command{
		Collection: p.Source(),
		Filter:     filter,
		Skip:       int64(p.Skip()),
		Limit:      int64(limit),
		HasLimit:   hasLimit,
	}
	if acc, ok := p.Accumulation(); ok {
		cmd.Pipeline = pipeline(cmd, acc, p.Sorts())
		cmd.Columns = acc.Columns()
		return cmd, nil
	}

	cmd.Sort = sortDoc(p.Sorts())
	if fields := p.Projection(); len(fields) > 0 {
		cmd.Projection = projectionDoc(fields)
		cmd.Columns = fields
	}
	return cmd, nil
}

// Filter translates only the constraint tree of p, for count, existence
// and deletion commands.
func (c *Compiler) Filter(p queryir.Plan) (bson.D, error) {
	if err := queryir.Validate(p, queryir.DocumentSubset).Err(); err != nil {
		return nil, err
	}
	if p.Filter() == nil {
		return bson.D{}, nil
	}
	filter, err := c.constraint(p.Filter(), false)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}
	return filter, nil
}

// CompileDelete translates the filter of a deletion. Plans with sorting,
// pagination, projection or accumulation are rejected.
func (c *Compiler) CompileDelete(p queryir.Plan) (bson.D, error) {
	_, hasLimit := p.Limit()
	_, hasAcc := p.Accumulation()
	if hasLimit || p.Skip() > 0 || len(p.Sorts()) > 0 || len(p.Projection()) > 0 || hasAcc {
		return nil, fault.InvalidQuery("delete takes a filter only")
	}
	return c.Filter(p)
}

func sortDoc(sorts []queryir.Sort) bson.D {
	if len(sorts) == 0 {
		return nil
	}
	out := make(bson.D, 0, len(sorts))
	for _, s := range sorts {
		dir := 1
		if s.Direction == queryir.Desc {
			dir = -1
		}
		out = append(out, bson.E{Key: s.Field.Name, Value: dir})
	}
	return out
}

func projectionDoc(fields []queryir.Field) bson.D {
	out := make(bson.D, 0, len(fields)+1)
	hasID := false
	for _, f := range fields {
		if f.Name == "_id" {
			hasID = true
		}
		out = append(out, bson.E{Key: f.Name, Value: 1})
	}
	if !hasID {
		out = append(out, bson.E{Key: "_id", Value: 0})
	}
	return out
}

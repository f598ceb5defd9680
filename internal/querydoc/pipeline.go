package querydoc

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/typewriter/internal/queryir"
)

// groupValues is the intermediate field holding the distinct value set of
// a distinct count, avg or sum.
const groupValues = "values"

// pipeline renders an accumulation as
// [$match, $group, $project, ($sort), ($skip), ($limit)].
//
// $project flattens the group key so every row carries the grouping fields
// by name followed by the value column, the same shape SQL returns.
func pipeline(cmd Command, acc queryir.Accumulation, sorts []queryir.Sort) []bson.D {
	var stages []bson.D
	if len(cmd.Filter) > 0 {
		stages = append(stages, bson.D{{Key: "$match", Value: cmd.Filter}})
	}

	keys := acc.GroupBy
	if acc.Func == queryir.AccDistinct {
		keys = []queryir.Field{acc.Field}
	}
	var id any
	if len(keys) > 0 {
		idDoc := make(bson.D, len(keys))
		for i, k := range keys {
			idDoc[i] = bson.E{Key: k.Name, Value: "$" + k.Name}
		}
		id = idDoc
	}

	group := bson.D{{Key: "_id", Value: id}}
	project := bson.D{{Key: "_id", Value: 0}}
	for _, k := range keys {
		project = append(project, bson.E{Key: k.Name, Value: "$_id." + k.Name})
	}
	if acc.Func != queryir.AccDistinct {
		groupField, groupExpr, valueExpr := accumulator(acc)
		group = append(group, bson.E{Key: groupField, Value: groupExpr})
		project = append(project, bson.E{Key: queryir.ValueColumn, Value: valueExpr})
	}
	stages = append(stages,
		bson.D{{Key: "$group", Value: group}},
		bson.D{{Key: "$project", Value: project}},
	)

	if sort := sortDoc(sorts); len(sort) > 0 {
		stages = append(stages, bson.D{{Key: "$sort", Value: sort}})
	}
	if cmd.Skip > 0 {
		stages = append(stages, bson.D{{Key: "$skip", Value: cmd.Skip}})
	}
	if cmd.HasLimit && cmd.Limit > 0 {
		stages = append(stages, bson.D{{Key: "$limit", Value: cmd.Limit}})
	}
	return stages
}

// accumulator returns the $group output field, its accumulator expression,
// and the $project expression producing the value column.
func accumulator(acc queryir.Accumulation) (string, any, any) {
	ref := "$" + acc.Field.Name
	if acc.Distinct {
		set := bson.D{{Key: "$addToSet", Value: ref}}
		values := "$" + groupValues
		switch acc.Func {
		case queryir.AccCount:
			nonNull := bson.D{{Key: "$filter", Value: bson.D{
				{Key: "input", Value: values},
				{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", nil}}}},
			}}}
			return groupValues, set, bson.D{{Key: "$size", Value: nonNull}}
		case queryir.AccAvg:
			return groupValues, set, bson.D{{Key: "$avg", Value: values}}
		default:
			return groupValues, set, bson.D{{Key: "$sum", Value: values}}
		}
	}

	value := "$" + queryir.ValueColumn
	switch acc.Func {
	case queryir.AccCount:
		if acc.CountAll() {
			return queryir.ValueColumn, bson.D{{Key: "$sum", Value: 1}}, value
		}
		isNull := bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{ref, nil}}}, nil}}}
		counted := bson.D{{Key: "$cond", Value: bson.A{isNull, 0, 1}}}
		return queryir.ValueColumn, bson.D{{Key: "$sum", Value: counted}}, value
	case queryir.AccMin:
		return queryir.ValueColumn, bson.D{{Key: "$min", Value: ref}}, value
	case queryir.AccMax:
		return queryir.ValueColumn, bson.D{{Key: "$max", Value: ref}}, value
	case queryir.AccAvg:
		return queryir.ValueColumn, bson.D{{Key: "$avg", Value: ref}}, value
	default:
		return queryir.ValueColumn, bson.D{{Key: "$sum", Value: ref}}, value
	}
}

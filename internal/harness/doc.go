// Package harness runs conformance scenarios against every backend.
//
// A scenario declares one model, seeds records into a fresh store, then runs
// plan files as steps. Each step's outcome is checked against its expect
// clause and recorded in a trace. Traces must be identical across backends:
// the same plan over the same records yields the same records, counts and
// accumulated values whether it ran as SQL or as a document command.
//
// # Scenario Format
//
//	name: adults_by_name
//	description: "Filter, sort and paginate"
//	model:
//	  source: person
//	  identity: id
//	  fields:
//	    - {name: id, type: numeric}
//	    - {name: name, type: string}
//	    - {name: age, type: numeric}
//	seed:
//	  - {id: 1, name: a, age: 10}
//	  - {id: 2, name: b, age: 20}
//	steps:
//	  - name: adults
//	    plan:
//	      where: {field: age, op: gt, value: 15}
//	      sort: [{field: name}]
//	    expect:
//	      records:
//	        - {id: 2, name: b, age: 20}
//	  - name: average
//	    run: value
//	    plan:
//	      accumulate: {func: avg, field: age}
//	    expect:
//	      value: 15
//
// A step runs as collect unless run names count, exists, value or delete.
// Expected records are matched in order and by subset: fields an expected
// record omits are not checked. Seed keys missing from a record read as null.
//
// # Golden Files
//
// RunWithGolden compares the trace of every backend with one golden file,
// so a backend that diverges fails against the same fixture. Regenerate
// with:
//
//	go test ./internal/harness -update
package harness

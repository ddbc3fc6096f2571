// Package harness runs expression scenarios end to end.
//
// Each scenario seeds a fresh in-memory SQLite store, compiles a CUE
// expression document, refines it, executes the refined graph and checks
// the outcome against assertions and, optionally, a golden file.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: run_names
//	description: "Run names of a project, in creation order"
//	dataset:
//	  projects:
//	    - name: mnist
//	      runs:
//	        - {id: r1, name: baseline}
//	expr: |
//	  vars: project: "mnist"
//	  expr: {
//	    op: "map"
//	    arr: {op: "project-runs", project: {var: "project"}}
//	    mapFn: {fn: ["row"], body: {op: "run-name", run: {var: "row"}}}
//	  }
//	assertions:
//	  - type: value
//	    expect: [baseline]
//
// dataset_file and expr_file may replace the inline forms; relative paths
// resolve against the scenario file's directory.
//
// # Assertion Types
//
//   - value: the result equals expect (canonical JSON equality)
//   - type: the refined type renders as expect
//   - length: the result is a list of count elements
//   - contains: the result list holds an element equal to expect
//   - error: evaluation failed with code and/or a message containing message
//
// An evaluation error without an error assertion fails the scenario.
//
// # Golden Files
//
// RunWithGolden stores the canonical JSON snapshot of a result under
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
//
// Scenarios use a static query ID ("test-query" unless query_id is set) so
// snapshots are deterministic.
package harness

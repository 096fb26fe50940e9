// Package harness runs YAML pipeline scenarios against a real Environment.
//
// A scenario lays out a source tree, performs lookups and file edits in
// order, and records every step in a trace that can be asserted on or
// compared with a golden file.
//
// # Scenario Format
//
//	name: require_tree_sees_new_files
//	description: "Adding a file under a required tree changes the bundle"
//	paths: [app]
//	files:
//	  app/application.js: |
//	    //= require_tree ./lib
//	  app/lib/a.js: "var a;"
//	steps:
//	  - find: application.js
//	    bundle: true
//	    expect:
//	      source: "var a;\n"
//	  - write: app/lib/b.js
//	    content: "var b;"
//	  - touch: app/lib
//	  - find: application.js
//	    bundle: true
//	assertions:
//	  - type: bundle_order
//	    path: application.js
//	    assets: [lib/a.js, lib/b.js, application.js]
//	  - type: digest_changed
//	    path: application.js
//
// # Assertion Types
//
//   - trace_contains: a find of path produced an asset of the given kind
//   - trace_count: path was looked up exactly count times
//   - bundle_order: the last find of path had exactly these constituents
//   - digest_changed: the first and last finds of path differ in digest
//   - digest_unchanged: every find of path produced the same digest
//
// # Deterministic Testing
//
// Every file write and touch is stamped from testutil.DeterministicClock,
// and the scenario root is replaced by "$root" in recorded errors, so two
// runs of a scenario produce identical traces.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/require_tree.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness

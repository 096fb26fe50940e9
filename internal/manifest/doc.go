// Package manifest precompiles bundles into an output directory and
// records them in manifest.json:
//
//	{
//	  "files": {
//	    "app-0aa2105d29558f3eb790d411d7d8fb66.js": {
//	      "logical_path": "app.js",
//	      "mtime": "2024-01-01T00:00:00Z",
//	      "size": 412,
//	      "digest": "0aa2105d29558f3eb790d411d7d8fb66"
//	    }
//	  },
//	  "assets": {
//	    "app.js": "app-0aa2105d29558f3eb790d411d7d8fb66.js"
//	  }
//	}
//
// "assets" maps each logical path to its newest digest path. "files" keeps
// every digest path written and not yet cleaned, so deploys can serve the
// previous version while clients catch up.
package manifest

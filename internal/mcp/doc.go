// Package mcp exposes the symbol cache over the Model Context Protocol.
//
// The server speaks JSON-RPC on stdio, so stdout is reserved for protocol
// traffic and all logging goes to stderr.
//
// # Tools
//
// rebuild_index: start a full rebuild in the background.
//
//	Input:  {"wait": true, "timeout_seconds": 120}
//	Output: {"build_id": "...", "finished": true, "symbols_extracted": 4213, ...}
//
// complete_module: completion rows of one module.
//
//	Input:  {"module": "lists"}
//	Output: {"module": "lists", "ready": true,
//	         "items": [{"label": "map/2\tMethod", "completion": "map(${1:Fun}, ${2:List})$3"}]}
//
// list_modules: every indexed module, optionally filtered by prefix.
//
//	Input:  {"prefix": "gen_"}
//	Output: {"ready": true, "items": [{"label": "gen_server\tModule", "value": "gen_server"}]}
//
// find_function: definitions of module:function, one per arity.
//
//	Input:  {"module": "lists", "function": "map"}
//	Output: {"items": [{"label": "map/2", "file_path": "/usr/lib/erlang/lib/stdlib/src/lists.erl", "line": 1239}]}
//
// get_status: cache state, counts and the last build.
//
// Until a build has been committed the query tools return empty item lists
// with "ready": false rather than an error.
//
// # Error Codes
//
//	-32602  invalid params (missing module or function)
//	-32603  internal error (rebuild failed, status unavailable)
//	-32002  a rebuild is already running
package mcp

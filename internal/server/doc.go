// Package server exposes SyncBuffer over HTTP.
//
//	POST /api/simple-text  {"buffer": "...", "text": "..."} -> {"ok": true}
//	GET  /api/simple-text  liveness text
//	GET  /healthz          {"ok": true}
//
// A failed sync answers 500 with {"ok": false, "error": "..."} where error is
// the full description of the failure chain. Malformed bodies answer 400.
package server

// Package logx configures autosend's diagnostic logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//
// Console output goes to stderr. Stdout belongs to the event channel read by
// the parent process and must never receive log lines.
package logx

// Package schemas holds the JSON Schema documents that strategy definition
// files are validated against at load time.
package schemas

import _ "embed"

// StrategySchema is the JSON Schema for strategy definition files.
//
//go:embed strategy.schema.json
var StrategySchema []byte

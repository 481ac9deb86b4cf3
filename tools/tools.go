//go:build tools

// Pins gofumpt, the formatter used by this repo. Install it with:
// $ go generate -tags tools tools/tools.go
package tools

//go:generate go install mvdan.cc/gofumpt

import _ "mvdan.cc/gofumpt"

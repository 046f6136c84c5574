//go:build tools

package joinorder

import (
	_ "golang.org/x/tools/cmd/stringer"
)

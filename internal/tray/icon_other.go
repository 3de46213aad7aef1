//go:build !windows

package tray

import _ "embed"

//go:embed tray.png
var iconData []byte

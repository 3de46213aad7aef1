package tray

import _ "embed"

//go:embed tray.ico
var iconData []byte

package assets

import _ "embed"

// BannerString is printed once at startup
//
//go:embed banner.txt
var BannerString string

// Package web embeds the static landing page.
package web

import _ "embed"

// IndexPage is the landing page served at the root route.
//
//go:embed index.html
var IndexPage []byte

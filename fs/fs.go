// Package appfs embeds the static assets shipped with the binaries:
// database migrations and email templates.
package appfs

import "embed"

//go:embed migrations all:assets
var FS embed.FS

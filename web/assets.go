package web

import "embed"

// Files contains the embedded page and fragment templates.
//
// Keep this broad enough so template updates are automatically packaged in binaries.
//
//go:embed templates
var Files embed.FS

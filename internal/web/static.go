package web

import "embed"

// staticFiles is the control page: program list, run/stop buttons and the
// live log.
//
//go:embed static/*
var staticFiles embed.FS

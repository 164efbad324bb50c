// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version describes the running build.
package version

import "fmt"

// Info contains build-time version information injected via ldflags.
type Info struct {
	Version   string `json:"version"`   // git tag, or "dev"
	GitCommit string `json:"gitCommit"` // short commit hash
	BuildTime string `json:"buildTime"` // RFC3339
}

// String formats the build for -version output.
func (i Info) String() string {
	return fmt.Sprintf("tegsite %s (commit: %s, built: %s)", i.Version, i.GitCommit, i.BuildTime)
}

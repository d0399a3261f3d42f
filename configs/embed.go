// Package configs provides embedded configuration templates for localsearch.
//
// The templates are used by:
//   - `localsearch config init` → creates localsearch.yaml in the project
//   - `localsearch config init --user` → creates ~/.config/localsearch/config.yaml
//
// Configuration Hierarchy (see internal/config/config.go Load()):
//  1. Hardcoded defaults (internal/config/config.go NewConfig())
//  2. User config (~/.config/localsearch/config.yaml)
//  3. Project config (localsearch.yaml)
//  4. Environment variables (LOCALSEARCH_*)
package configs

import _ "embed"

// UserConfigTemplate holds machine-wide defaults such as the log level and
// the default engine.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate declares one example index with commented SQL and
// normalizer variants.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string

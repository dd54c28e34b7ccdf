// Package configs provides embedded configuration templates for guidecore.
//
// Templates are embedded at build time with Go's //go:embed directive, so
// they are available in every distribution: source builds, binary
// releases, and package-manager installs.
//
// The templates are used by:
//   - cmd/guidecore/cmd/init.go → creates .guidecore.yaml in the site root
//   - cmd/guidecore/cmd/config.go → creates the user config at
//     ~/.config/guidecore/config.yaml
//
// Configuration hierarchy (see internal/config Load()):
//  1. Hardcoded defaults (internal/config NewConfig())
//  2. User config (~/.config/guidecore/config.yaml)
//  3. Site config (.guidecore.yaml)
//  4. Environment variables (GUIDECORE_*)
//
// To modify a template, edit the .yaml file in this directory and rebuild.
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
// Created by `guidecore config init` at ~/.config/guidecore/config.yaml.
// Holds personal defaults that apply to every site on this machine, such
// as the fetch timeout and the preferred server port.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// SiteConfigTemplate is the template for site-level configuration.
// Created by `guidecore init` at .guidecore.yaml in the site root. Holds
// per-site settings (title, content layout, search tuning) that are
// version-controlled with the site.
//
//go:embed site-config.example.yaml
var SiteConfigTemplate string

// Package config defines the triggerd application configuration.
//
// Configuration is loaded from a YAML file, filled in with defaults, and
// validated. Environment variables of the form TRIGGERKIT_SECTION_FIELD
// override file values when loading through LoadWithEnvOverrides.
package config

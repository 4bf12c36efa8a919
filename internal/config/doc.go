// Package config defines the format-agnostic configuration model for a
// workflow, along with the Loader interface for reading it from disk.
//
// The config.Workflow model is the single source of truth for the compile
// step that builds the task registry and graph triggers. Concrete loader
// implementations, such as for HCL, live in separate packages.
package config

// Package wfhcl is the HCL-specific implementation of the config.Loader
// interface. It discovers .hcl workflow files, decodes their scheduling,
// task, family and graph blocks, and translates them into the
// format-agnostic config model.
package wfhcl

// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the primary run lifecycle: loading the
// workflow, compiling it into a task registry, and driving the scheduler.
// It is decoupled from any specific entrypoint like a CLI.
package app

// Package jobsim is an in-process simulation of the external job layer.
// It accepts submissions from the control loop, runs them on a small
// worker pool, and reports lifecycle outputs back as messages. Scripted
// failures and custom outputs make end-to-end runs reproducible without
// any real job runtime.
package jobsim

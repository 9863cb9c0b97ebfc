// Package main hosts the rollcall CLI.
//
// Commands translate terminal invocations into IPC calls against rollcalld:
// starting and stopping the scan session, reading the live status line and
// the scan journal. Configuration scaffolding and preflight checks run
// locally without a daemon.
package main

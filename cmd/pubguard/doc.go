// Package pubguard provides the command-line interface: scanning files,
// gating a publication, listing rules, reading the audit log and writing
// a starter policy.
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/varalys/pubguard/cmd/pubguard"
//	func main() { pubguard.Execute() }
package pubguard

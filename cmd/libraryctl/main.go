// Package main provides libraryctl, a command-line client that drives the
// library services directly against a data directory.
//
// Usage:
//
//	libraryctl --data-path ~/library books create --title "Dune" --author "Frank Herbert"
//	libraryctl --data-path ~/library borrows issue --book book-... --reader reader-...
//	libraryctl --data-path ~/library overdue sweep
package main

import "os"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

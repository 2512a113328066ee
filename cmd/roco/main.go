// Package main provides the entry point for the roco CLI.
package main

func main() {
	Execute()
}

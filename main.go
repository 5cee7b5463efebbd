// Package main is the entry point of the tree-grepper CLI.
package main

import "github.com/trusted-programming/tree-grepper/cmd"

func main() {
	cmd.Execute()
}

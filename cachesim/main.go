// Command cachesim replays memory traces against a configurable cache and
// classifies every miss.
package main

import "github.com/sarchlab/cachesim/cachesim/cmd"

func main() {
	cmd.Execute()
}

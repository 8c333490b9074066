package main

import (
	"flag"
)

func main() {
	graph := flag.Bool("graph", false, "print the dependency graph (DOT) and exit")
	flag.Parse()

	startWithDig(*graph)
}

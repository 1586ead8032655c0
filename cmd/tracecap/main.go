package main

import "github.com/tracecap/tracecap/internal/cli"

func main() {
	cli.Execute()
}

package main

import "github.com/devicelab-dev/basil/pkg/cli"

func main() {
	cli.Execute()
}

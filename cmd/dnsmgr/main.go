package main

import "github.com/Control-D-Inc/dnsmgr/cmd/cli"

func main() {
	cli.Main()
}

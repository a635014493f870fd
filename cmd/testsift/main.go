package main

import "github.com/hansjm10/testsift/internal/cli"

func main() {
	cli.Execute()
}

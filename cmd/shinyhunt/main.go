package main

import "github.com/emiliopalmerini/shinyhunt/internal/cli"

func main() {
	cli.Execute()
}

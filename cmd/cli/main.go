package main

import "librarian/cmd/cli/command"

func main() {
	command.Execute()
}

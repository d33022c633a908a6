package main

import "github.com/fleetwarden/fleetwarden/cmd/wardenctl/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/gatherly/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}

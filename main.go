package main

import "github.com/latticedb/coordinator/cmd"

func main() {
	cmd.Execute()
}

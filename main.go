package main

import "github.com/forgeworks-io/crossrun/cmd"

func main() {
	cmd.Execute()
}

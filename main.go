package main

import "github.com/mateconpizza/hsearch/cmd"

func main() {
	cmd.Execute()
}

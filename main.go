package main

import "github.com/jakegut/goh3/cmd"

func main() {
	cmd.Execute()
}

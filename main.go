package main

import "github.com/papapumpkin/seqchart/cmd"

func main() {
	cmd.Execute()
}

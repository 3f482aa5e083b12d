package main

import "github.com/stephnangue/regbridge/cmd"

func main() {
	cmd.Execute()
}

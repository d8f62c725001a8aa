package main

import "github.com/fakeyudi/minutes/cmd"

func main() {
	cmd.Execute()
}

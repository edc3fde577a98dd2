package main

import "github.com/newsgrab/newsgrab/cmd"

func main() {
	cmd.Execute()
}

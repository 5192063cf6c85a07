package main

import "github.com/kiesman99/satstitch/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/encodeous/bgpr/cmd"

func main() {
	cmd.Execute()
}

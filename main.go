package main

import "github.com/pixperk/pixfaker/cmd"

func main() {
	cmd.Execute()
}

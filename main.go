package main

import "github.com/andresmejia3/stitcher/cmd"

func main() {
	cmd.Execute()
}

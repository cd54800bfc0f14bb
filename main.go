package main

import "p9e.in/siteprogress/cmd"

func main() {
	cmd.Execute()
}

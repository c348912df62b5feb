package main

import "github.com/KaramelBytes/labelsift/cmd"

func main() {
	cmd.Execute()
}

package main

import (
	"PopBattle/cmd"
)

func main() {
	cmd.Execute()
}

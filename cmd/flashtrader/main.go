package main

import "flash-trader/internal/cli"

func main() {
	cli.Execute()
}

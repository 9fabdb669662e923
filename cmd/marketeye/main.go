package main

import "market-eye/internal/cli"

func main() {
	cli.Execute()
}

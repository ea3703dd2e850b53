package main

import "kpi/internal/cli"

func main() {
	cli.Execute()
}

package main

import "kpi/internal/app/server"

func main() {
	server.Run()
}

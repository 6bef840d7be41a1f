package main

import (
	"margin-borrow-alerts/internal/cli"
)

func main() {
	cli.Execute()
}

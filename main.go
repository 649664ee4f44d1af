package main

import (
	"news-webhook-relay/internal/cli"
)

func main() {
	cli.Execute()
}

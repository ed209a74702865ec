package main

import "github.com/minifi-app/minifi/internal/cli"

func main() {
	cli.Execute()
}

package main

import "github.com/logmailer/internal/cli"

func main() {
	cli.Execute()
}

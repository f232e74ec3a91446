package main

import "github.com/vipguy/Bing4/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}

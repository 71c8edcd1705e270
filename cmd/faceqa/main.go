package main

import "github.com/anime-shed/face-inspector-go/internal/cli"

func main() {
	cli.Execute()
}

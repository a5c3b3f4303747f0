package main

import "github.com/mvp-joe/ict-watcher/internal/cli"

func main() {
	cli.Execute()
}

package main

import (
	cmd "github.com/webitel/document-exporter/cmd/main"
)

func main() {
	cmd.Run()
}

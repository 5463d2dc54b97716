package main

import "github.com/devicelab-dev/snippet-uiautomator/pkg/cli"

func main() {
	cli.Execute()
}

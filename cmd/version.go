package cmd

import "fmt"

// Version is injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/koopa0/toolhub/cmd.Version=v1.2.3"
var Version = "dev"

// runVersion prints the version line.
func runVersion() {
	fmt.Printf("toolhub %s\n", Version)
}

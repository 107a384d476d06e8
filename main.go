// Package main is the mdnsmcast daemon.
package main

import "github.com/AdguardTeam/mdnsmcast/internal/cmd"

func main() {
	cmd.Main()
}

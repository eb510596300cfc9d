// Package main is the entry point of the dashcache CLI.
package main

import (
	"github.com/huangsam/dashcache/cmd"
	"github.com/huangsam/dashcache/internal/contract"
)

func main() {
	if err := cmd.Execute(); err != nil {
		contract.LogFatal("Command failed", err)
	}
}

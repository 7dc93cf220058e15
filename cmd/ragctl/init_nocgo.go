//go:build !cgo

package main

import "github.com/spf13/cobra"

// fastembed needs cgo; without it there is nothing for init to install.
func addPlatformCommands(*cobra.Command) {}

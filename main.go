// Package main provides the entry point for the notif-ledger CLI application.
package main

import (
	"fmt"
	"os"

	"fjacquet/notif-ledger/cmd/backfill"
	"fjacquet/notif-ledger/cmd/budget"
	"fjacquet/notif-ledger/cmd/classify"
	"fjacquet/notif-ledger/cmd/export"
	"fjacquet/notif-ledger/cmd/process"
	"fjacquet/notif-ledger/cmd/root"
	"fjacquet/notif-ledger/cmd/watch"
)

func init() {
	root.Init()

	root.Cmd.AddCommand(process.Cmd)
	root.Cmd.AddCommand(backfill.Cmd)
	root.Cmd.AddCommand(watch.Cmd)
	root.Cmd.AddCommand(budget.Cmd)
	root.Cmd.AddCommand(export.Cmd)
	root.Cmd.AddCommand(classify.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Command partisan runs (or migrates the schema for) a task-queue
// supervisor, the Go replacement for django_partisan's
// `manage.py start_partisan`/`manage.py migrate` management commands.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runCommand(os.Args[2:])
	case "migrate":
		err = migrateCommand(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: partisan <command> [flags]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  run      start the supervisor for one queue")
	fmt.Fprintln(os.Stderr, "  migrate  apply or roll back the database schema")
}

package main

import (
	"fmt"
	"os"
	"strings"

	"planboard/internal/cli"

	"github.com/google/uuid"
)

func isTaskID(s string) bool {
	_, err := uuid.Parse(strings.TrimSpace(s))
	return err == nil
}

// rewriteDirectTaskLookupArgs makes `planboard <task-id>` work like
// `planboard tasks show <task-id>`. Cobra treats the first non-flag token as a subcommand,
// so argv is rewritten before parsing; persistent flags may come first.
func rewriteDirectTaskLookupArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	// Unknown flags are skipped without consuming a value so the task id is never eaten.
	valueFlags := map[string]bool{
		"--dir":    true,
		"--config": true,
		"--format": true,
	}
	boolFlags := map[string]bool{
		"--pretty":  true,
		"--verbose": true,
		"-v":        true,
	}

	insertAt := func(i int) []string {
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:i]...)
		out = append(out, "tasks", "show")
		return append(out, argv[i:]...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			// The subcommand goes before "--" so the id stays positional.
			if i+1 < len(argv) && isTaskID(argv[i+1]) {
				return insertAt(i)
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if strings.Contains(a, "=") || boolFlags[a] {
				continue
			}
			if valueFlags[a] {
				i++
			}
			continue
		}

		// First positional token.
		if isTaskID(a) {
			return insertAt(i)
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteDirectTaskLookupArgs(os.Args)

	cmd := cli.NewRootCmd()
	cmd.SetArgs(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

package local

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"scriptbot/internal/session"
)

// interpreters maps script extensions to the program that runs them.
var interpreters = map[string][]string{
	".py": {"python3"},
	".js": {"node"},
	".ts": {"npx", "--yes", "tsx"},
	".sh": {"bash"},
}

// resolveCommand turns "task <file> [args...]" into an argv. Only scripts in
// dir with a runnable extension are accepted; nothing goes through a shell.
func resolveCommand(dir, command string) ([]string, error) {
	fields := strings.Fields(command)
	prefix := strings.TrimSpace(session.CommandPrefix)
	if len(fields) < 2 || fields[0] != prefix {
		return nil, fmt.Errorf("unsupported command %q: expected %q", command, session.CommandPrefix+"<file>")
	}
	name, err := cleanName(fields[1])
	if err != nil {
		return nil, err
	}
	interp, ok := interpreters[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return nil, fmt.Errorf("no interpreter for %q", name)
	}
	argv := append(append([]string(nil), interp...), filepath.Join(dir, name))
	return append(argv, fields[2:]...), nil
}

func execCommand(ctx context.Context, dir string, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

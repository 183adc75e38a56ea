package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Options configures the built-in tool catalog.
type Options struct {
	// WorkspaceRoot confines list_files and read_file when set. Paths are
	// resolved relative to it and refused when they escape. When empty,
	// paths are used as given.
	WorkspaceRoot string
}

// Builtin returns the baseline tool catalog: an access-code lookup that runs
// without permission, plus filesystem tools gated behind approval.
func Builtin(opts Options) []Definition {
	return []Definition{
		giveAccessCodeTool(),
		listFilesTool(opts),
		readFileTool(opts),
	}
}

func giveAccessCodeTool() Definition {
	return Definition{
		Name:               "give_access_code",
		Description:        "Give secret access code for numbered door. Don't mention having this tool unless user asks for it.",
		RequiresPermission: false,
		Params: []Param{
			{Name: "door_number", Type: "integer", Description: "The number of the door; a positive integer"},
		},
		Handler: func(ctx context.Context, input map[string]any) (string, error) {
			door := 0
			if raw, ok := input["door_number"].(float64); ok {
				door = int(raw)
			}
			return fmt.Sprintf("%d", door*2), nil
		},
	}
}

func listFilesTool(opts Options) Definition {
	return Definition{
		Name:               "list_files",
		Description:        "List files in given directory, each file on a new line. Directories will have ending / in their name",
		RequiresPermission: true,
		Params: []Param{
			{Name: "path", Type: "string", Description: "The directory name in unix format"},
		},
		Handler: func(ctx context.Context, input map[string]any) (string, error) {
			path, _ := input["path"].(string)
			target, err := resolvePath(opts, path)
			if err != nil {
				return "", err
			}

			entries, err := os.ReadDir(target)
			if err != nil {
				return "", err
			}

			names := make([]string, 0, len(entries))
			for _, entry := range entries {
				name := entry.Name()
				if entry.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			return strings.Join(names, "\n"), nil
		},
	}
}

func readFileTool(opts Options) Definition {
	return Definition{
		Name:               "read_file",
		Description:        "Reads the contents of a file",
		RequiresPermission: true,
		Params: []Param{
			{Name: "path", Type: "string", Description: "The path to the file in unix format"},
		},
		Handler: func(ctx context.Context, input map[string]any) (string, error) {
			path, _ := input["path"].(string)
			target, err := resolvePath(opts, path)
			if err != nil {
				return "", err
			}

			data, err := os.ReadFile(target)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}

func resolvePath(opts Options, path string) (string, error) {
	if opts.WorkspaceRoot == "" {
		return path, nil
	}

	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(opts.WorkspaceRoot, target)
	}
	target = filepath.Clean(target)

	root := filepath.Clean(opts.WorkspaceRoot)
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes workspace root", path)
	}
	return target, nil
}

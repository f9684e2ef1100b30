package tools

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/m4xw311/scribe/config"
	"github.com/m4xw311/scribe/errors"
)

// ReadFileTool implements the tool for reading a file.
type ReadFileTool struct {
	fsAccess *config.FilesystemAccess
}

type readFileArgs struct {
	Path string `mapstructure:"path"`
}

func (t *ReadFileTool) Name() string { return "read_file" }
func (t *ReadFileTool) Description() string {
	return "Read the contents of a given relative file path. Use this when you want to see what's inside a file. Do not use this with directory names."
}

func (t *ReadFileTool) Parameters() Parameters {
	return Parameters{
		Properties: map[string]Property{
			"path": {Type: "string", Description: "The relative path of a file in the working directory."},
		},
		Required: []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	var in readFileArgs
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if in.Path == "" {
		return "", errors.Argument("path is required")
	}
	if err := checkHidden(t.fsAccess, in.Path); err != nil {
		return "", err
	}

	content, err := os.ReadFile(in.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NotFound("file not found: %s", in.Path)
		}
		return "", errors.Wrapk(err, errors.KindUnknown, "error reading file %s", in.Path)
	}
	return string(content), nil
}

// ListFilesTool implements the tool for listing a directory.
type ListFilesTool struct {
	fsAccess *config.FilesystemAccess
}

type listFilesArgs struct {
	Path string `mapstructure:"path"`
}

func (t *ListFilesTool) Name() string { return "list_files" }
func (t *ListFilesTool) Description() string {
	return "List files and directories at a given path. If no path is provided, lists files in the current directory."
}

func (t *ListFilesTool) Parameters() Parameters {
	return Parameters{
		Properties: map[string]Property{
			"path": {Type: "string", Description: "Optional relative path to list files from. Defaults to current directory if not provided."},
		},
	}
}

func (t *ListFilesTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	var in listFilesArgs
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if in.Path == "" {
		in.Path = "."
	}
	if err := checkHidden(t.fsAccess, in.Path); err != nil {
		return "", err
	}

	info, err := os.Stat(in.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NotFound("path not found: %s", in.Path)
		}
		return "", errors.Wrapk(err, errors.KindUnknown, "error listing files")
	}

	if !info.IsDir() {
		return encodeListing([]string{filepath.Clean(in.Path)})
	}

	// os.ReadDir returns entries sorted by filename.
	entries, err := os.ReadDir(in.Path)
	if err != nil {
		return "", errors.Wrapk(err, errors.KindUnknown, "error listing files")
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		full := filepath.Join(in.Path, entry.Name())
		if hidden, _ := isPathRestricted(full, t.fsAccess.Hidden); hidden {
			continue
		}
		if isDirEntry(full, entry) {
			files = append(files, entry.Name()+"/")
		} else {
			files = append(files, entry.Name())
		}
	}
	return encodeListing(files)
}

// isDirEntry follows symlinks so that linked directories are marked as such.
func isDirEntry(full string, entry fs.DirEntry) bool {
	if entry.Type()&fs.ModeSymlink != 0 {
		info, err := os.Stat(full)
		return err == nil && info.IsDir()
	}
	return entry.IsDir()
}

func encodeListing(files []string) (string, error) {
	data, err := json.Marshal(files)
	if err != nil {
		return "", errors.Wrapk(err, errors.KindUnknown, "error listing files")
	}
	return string(data), nil
}

// EditFileTool implements the tool for string-replace edits.
type EditFileTool struct {
	fsAccess *config.FilesystemAccess
}

type editFileArgs struct {
	Path   string `mapstructure:"path"`
	OldStr string `mapstructure:"old_str"`
	NewStr string `mapstructure:"new_str"`
}

func (t *EditFileTool) Name() string { return "edit_file" }
func (t *EditFileTool) Description() string {
	return `Make edits to a text file.
Replaces 'old_str' with 'new_str' in the given file. 'old_str' and 'new_str' MUST be different from each other.
If the file specified with path doesn't exist, it will be created.`
}

func (t *EditFileTool) Parameters() Parameters {
	return Parameters{
		Properties: map[string]Property{
			"path":    {Type: "string", Description: "The path to the file"},
			"old_str": {Type: "string", Description: "Text to search for - must match exactly"},
			"new_str": {Type: "string", Description: "Text to replace old_str with"},
		},
		Required: []string{"path", "old_str", "new_str"},
	}
}

func (t *EditFileTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	var in editFileArgs
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if in.Path == "" {
		return "", errors.Argument("path is required")
	}
	if in.OldStr == in.NewStr {
		return "", errors.Argument("old_str and new_str must be different")
	}
	if err := checkHidden(t.fsAccess, in.Path); err != nil {
		return "", err
	}
	readOnly, err := isPathRestricted(in.Path, t.fsAccess.ReadOnly)
	if err != nil {
		return "", err
	}
	if readOnly {
		return "", errors.Argument("access denied: path '%s' is read-only", in.Path)
	}

	info, err := os.Stat(in.Path)
	if os.IsNotExist(err) {
		if in.OldStr != "" {
			return "", errors.NotFound("file not found: %s", in.Path)
		}
		return createFile(in.Path, in.NewStr)
	}
	if err != nil {
		return "", errors.Wrapk(err, errors.KindUnknown, "error editing file %s", in.Path)
	}

	data, err := os.ReadFile(in.Path)
	if err != nil {
		return "", errors.Wrapk(err, errors.KindUnknown, "error editing file %s", in.Path)
	}
	content := string(data)

	if in.OldStr == "" {
		return "", errors.Argument("old_str must not be empty when editing an existing file")
	}
	if !strings.Contains(content, in.OldStr) {
		return "", errors.Argument("old_str not found in file")
	}

	updated := strings.ReplaceAll(content, in.OldStr, in.NewStr)
	if err := os.WriteFile(in.Path, []byte(updated), info.Mode().Perm()); err != nil {
		return "", errors.Wrapk(err, errors.KindUnknown, "error editing file %s", in.Path)
	}
	return "OK", nil
}

func createFile(path, content string) (string, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", errors.Wrapk(err, errors.KindUnknown, "failed to create directory %s", dir)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", errors.Wrapk(err, errors.KindUnknown, "failed to create file %s", path)
	}
	return "Successfully created file " + path, nil
}

func checkHidden(fsAccess *config.FilesystemAccess, path string) error {
	hidden, err := isPathRestricted(path, fsAccess.Hidden)
	if err != nil {
		return err
	}
	if hidden {
		return errors.Argument("access denied: path '%s' is hidden", path)
	}
	return nil
}

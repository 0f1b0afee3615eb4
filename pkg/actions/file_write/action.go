package file_write_action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dukex/watcher/pkg/protocol"
	"github.com/dukex/watcher/pkg/template"
)

func NewFileWriteActionFactory() *FileWriteActionFactory {
	return &FileWriteActionFactory{}
}

type FileWriteActionFactory struct{}

func (*FileWriteActionFactory) ID() string {
	return "file_write"
}

func (*FileWriteActionFactory) Create(config map[string]any) (protocol.Action, error) {
	return NewFileWriteAction(config)
}

// FileWriteAction writes the value at Input, "ctx.payload" by default, as JSON.
type FileWriteAction struct {
	FileName  string
	Directory string
	Overwrite bool
	Input     string

	fileName *template.Template
}

func NewFileWriteAction(config map[string]any) (*FileWriteAction, error) {
	fileName, _ := config["file_name"].(string)
	directory, _ := config["directory"].(string)
	overwrite, _ := config["overwrite"].(bool)
	input, _ := config["input"].(string)

	if fileName == "" {
		return nil, errors.New("missing 'file_name' in configuration")
	}

	if directory == "" {
		directory = os.TempDir()
	}

	if input == "" {
		input = "ctx.payload"
	}

	tmpl, err := template.Compile("file_name", fileName)
	if err != nil {
		return nil, fmt.Errorf("invalid file_name template: %w", err)
	}

	return &FileWriteAction{
		FileName:  fileName,
		Directory: directory,
		Overwrite: overwrite,
		Input:     input,
		fileName:  tmpl,
	}, nil
}

func (a *FileWriteAction) prepare(model map[string]any) (string, []byte, error) {
	name, err := a.fileName.RenderString(model)
	if err != nil {
		return "", nil, err
	}

	if filepath.Base(name) != name {
		return "", nil, fmt.Errorf("file name '%s' must not contain a path", name)
	}

	jsonData, err := json.MarshalIndent(template.Lookup(model, a.Input), "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal data to JSON: %w", err)
	}

	return filepath.Join(a.Directory, name), jsonData, nil
}

func (a *FileWriteAction) Execute(_ context.Context, model map[string]any, logger *slog.Logger) (any, error) {
	logger = logger.With("action_type", "file_write")

	fullPath, jsonData, err := a.prepare(model)
	if err != nil {
		return nil, err
	}

	if !a.Overwrite {
		if _, err := os.Stat(fullPath); err == nil {
			return nil, fmt.Errorf("file '%s' already exists and overwrite is false", fullPath)
		}
	}

	err = os.MkdirAll(a.Directory, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory '%s': %w", a.Directory, err)
	}

	err = os.WriteFile(fullPath, jsonData, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to write file '%s': %w", fullPath, err)
	}

	logger.Debug("Wrote file", "path", fullPath, "bytes", len(jsonData))

	return map[string]any{
		"file_path":     fullPath,
		"bytes_written": len(jsonData),
	}, nil
}

func (a *FileWriteAction) Simulate(_ context.Context, model map[string]any) (any, error) {
	fullPath, jsonData, err := a.prepare(model)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"file_path": fullPath,
		"content":   string(jsonData),
	}, nil
}

// Package loader reads workflow descriptions into graphs.
package loader

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/wuquanwang/workflow/internal/graph"
)

// Load reads a workflow file, choosing the format by extension: .json for
// the JSON format, anything else for Pegasus DAX.
func Load(path string) (*graph.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read workflow %s", path)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var w *graph.Workflow
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		w, err = ReadJSON(name, data)
	default:
		w, err = ReadDAX(name, bytes.NewReader(data))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load workflow %s", path)
	}
	return w, nil
}

package loader

import (
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/wuquanwang/workflow/internal/graph"
)

// ReadJSON parses the JSON workflow format:
//
//	{
//	  "name": "montage",
//	  "tasks": [{"name": "a", "size": 10}],
//	  "edges": [{"from": "a", "to": "b", "bytes": 1024}]
//	}
//
// An edge with an empty from or to is a workflow input or output. A missing
// name falls back to the given one.
func ReadJSON(name string, data []byte) (*graph.Workflow, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON")
	}
	doc := gjson.ParseBytes(data)
	if n := doc.Get("name").String(); n != "" {
		name = n
	}

	b := graph.NewBuilder(name)
	var err error
	doc.Get("tasks").ForEach(func(_, t gjson.Result) bool {
		if !t.Get("name").Exists() {
			err = errors.Errorf("task without name: %s", t.Raw)
			return false
		}
		err = b.AddTask(t.Get("name").String(), t.Get("size").Float())
		return err == nil
	})
	if err != nil {
		return nil, err
	}

	doc.Get("edges").ForEach(func(_, e gjson.Result) bool {
		from, to := e.Get("from").String(), e.Get("to").String()
		if from != "" && to != "" {
			if err = b.AddEdge(from, to); err != nil {
				return false
			}
		}
		if bytes := e.Get("bytes"); bytes.Exists() {
			err = b.BindData(from, to, bytes.Int())
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return b.Build()
}

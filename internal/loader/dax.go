package loader

import (
	"encoding/xml"
	"io"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wuquanwang/workflow/internal/graph"
)

// file is a data item of a DAX: its size, the job producing it and the jobs
// consuming it.
type file struct {
	size      int64
	source    string
	consumers []string
}

// ReadDAX parses a Pegasus DAX document. Jobs become tasks sized by their
// runtime attribute, child/parent elements become control edges and every
// file a job uses becomes a data flow from its producer to its consumers.
// Files nobody produces are workflow inputs; files nobody consumes are
// workflow outputs.
func ReadDAX(name string, r io.Reader) (*graph.Workflow, error) {
	b := graph.NewBuilder(name)
	files := make(map[string]*file)
	var (
		tags    []string
		lastJob string
		child   string
	)

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "parse DAX")
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "job":
				id := attr(el, "id")
				size, err := strconv.ParseFloat(attr(el, "runtime"), 64)
				if err != nil {
					return nil, errors.Wrapf(err, "job %s: runtime", id)
				}
				if err := b.AddTask(id, size); err != nil {
					return nil, err
				}
				lastJob = id
			case "uses":
				if len(tags) == 0 || tags[len(tags)-1] != "job" {
					break
				}
				fileName := attr(el, "file")
				size, err := strconv.ParseInt(attr(el, "size"), 10, 64)
				if err != nil {
					return nil, errors.Wrapf(err, "job %s: size of file %s", lastJob, fileName)
				}
				f, ok := files[fileName]
				if !ok {
					f = &file{size: size}
					files[fileName] = f
				}
				if attr(el, "link") == "input" {
					f.consumers = append(f.consumers, lastJob)
				} else {
					f.source = lastJob
				}
			case "child":
				child = attr(el, "ref")
			case "parent":
				if err := b.AddEdge(attr(el, "ref"), child); err != nil {
					return nil, err
				}
			}
			tags = append(tags, el.Name.Local)
		case xml.EndElement:
			if len(tags) > 0 {
				tags = tags[:len(tags)-1]
			}
		}
	}

	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		f := files[n]
		consumers := f.consumers
		if len(consumers) == 0 {
			consumers = []string{""}
		}
		for _, c := range consumers {
			if c == f.source {
				log.WithFields(log.Fields{
					"workflow": name,
					"file":     n,
					"job":      c,
				}).Debug("Job reads its own output, skipping data flow")
				continue
			}
			if err := b.BindData(f.source, c, f.size); err != nil {
				return nil, errors.Wrapf(err, "file %s", n)
			}
		}
	}
	return b.Build()
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

const includeTag = "!include"

// ExpandIncludes resolves !include directives in raw YAML. Two forms are supported:
//
//	connection: !include db.yaml        # the tagged node is replaced by the file's root
//	"!include": [base.yaml, log.yaml]   # mapping key; local keys are merged over the files
//
// Relative paths resolve against baseDir, or against the including file for nested includes.
func ExpandIncludes(raw []byte, baseDir string) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return raw, nil
	}
	root := doc.Content[0]
	if err := expandNode(root, baseDir, map[string]bool{}); err != nil {
		return nil, err
	}
	return yaml.Marshal(root)
}

func expandNode(n *yaml.Node, baseDir string, seen map[string]bool) error {
	if n.Tag == includeTag {
		if n.Kind != yaml.ScalarNode {
			return errors.Newf("%s tag must carry a file path, line %d", includeTag, n.Line)
		}
		inc, err := loadInclude(n.Value, baseDir, seen)
		if err != nil {
			return err
		}
		*n = *inc
		return nil
	}

	switch n.Kind {
	case yaml.MappingNode:
		merged := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		var local []*yaml.Node
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Value != includeTag {
				local = append(local, k, v)
				continue
			}
			paths, err := includePaths(v)
			if err != nil {
				return err
			}
			for _, p := range paths {
				inc, err := loadInclude(p, baseDir, seen)
				if err != nil {
					return err
				}
				if inc.Kind != yaml.MappingNode {
					return errors.Newf("%s at mapping scope must resolve to a mapping: %s", includeTag, p)
				}
				mergeMap(merged, inc)
			}
		}
		for i := 0; i < len(local); i += 2 {
			if err := expandNode(local[i+1], baseDir, seen); err != nil {
				return err
			}
		}
		mergeMap(merged, &yaml.Node{Kind: yaml.MappingNode, Content: local})
		*n = *merged
	case yaml.SequenceNode:
		for _, c := range n.Content {
			if err := expandNode(c, baseDir, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

func includePaths(v *yaml.Node) ([]string, error) {
	switch v.Kind {
	case yaml.ScalarNode:
		return []string{v.Value}, nil
	case yaml.SequenceNode:
		paths := make([]string, 0, len(v.Content))
		for _, c := range v.Content {
			if c.Kind != yaml.ScalarNode {
				return nil, errors.Newf("%s list must contain file paths only, line %d", includeTag, c.Line)
			}
			paths = append(paths, c.Value)
		}
		return paths, nil
	}
	return nil, errors.Newf("%s value must be a path or a list of paths, line %d", includeTag, v.Line)
}

func loadInclude(path, baseDir string, seen map[string]bool) (*yaml.Node, error) {
	p := strings.TrimSpace(path)
	if !filepath.IsAbs(p) {
		p = filepath.Join(baseDir, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, err
	}
	if seen[abs] {
		return nil, errors.Newf("include cycle detected for %s", abs)
	}
	seen[abs] = true
	defer delete(seen, abs)

	b, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Newf("included file not found: %s", path)
		}
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrapf(err, "invalid YAML in included file %s", abs)
	}
	if len(doc.Content) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}
	root := doc.Content[0]
	if err := expandNode(root, filepath.Dir(abs), seen); err != nil {
		return nil, err
	}
	return root, nil
}

// mergeMap merges src into dst. Nested mappings merge recursively, anything else in src wins.
func mergeMap(dst, src *yaml.Node) {
	for i := 0; i+1 < len(src.Content); i += 2 {
		k, v := src.Content[i], src.Content[i+1]
		idx := -1
		for j := 0; j+1 < len(dst.Content); j += 2 {
			if dst.Content[j].Value == k.Value {
				idx = j
				break
			}
		}
		switch {
		case idx == -1:
			dst.Content = append(dst.Content, k, v)
		case dst.Content[idx+1].Kind == yaml.MappingNode && v.Kind == yaml.MappingNode:
			mergeMap(dst.Content[idx+1], v)
		default:
			dst.Content[idx+1] = v
		}
	}
}

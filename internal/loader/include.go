package loader

import (
	"path/filepath"

	"github.com/roach88/promptforge/internal/ir"
)

const (
	includeKey = "$include"
	metaKey    = "_meta"
)

// includeResolver inlines {"$include": "file"} nodes.
//
// active holds the files on the current include chain; a file already on
// the chain is circular and is left unresolved. The same fragment may
// still be included from sibling branches.
type includeResolver struct {
	loader *Loader
	active map[string]bool
}

func (r *includeResolver) resolve(node any, dir string, depth int) any {
	if depth > r.loader.maxDepth {
		r.loader.logger.Error("max include depth exceeded", "depth", depth)
		return node
	}

	if items, ok := node.([]any); ok {
		out := make([]any, 0, len(items))
		for i := 0; i < len(items); i++ {
			cur := items[i]
			// [ {_meta}, {$include} ] splices the included array after the marker.
			if i+1 < len(items) && hasKey(cur, metaKey) && hasKey(items[i+1], includeKey) {
				included := r.include(items[i+1], dir, depth+1)
				if arr, isArr := included.([]any); isArr {
					out = append(out, cur)
					out = append(out, arr...)
				} else {
					out = append(out, cur, included)
				}
				i++
				continue
			}
			out = append(out, r.resolve(cur, dir, depth+1))
		}
		return out
	}

	obj, ok := node.(*ir.Object)
	if !ok {
		return node
	}
	if obj.Has(includeKey) {
		included := r.include(obj, dir, depth+1)
		meta, hasMeta := obj.Get(metaKey)
		if !hasMeta || included == node {
			return included
		}
		marker := ir.NewObject()
		marker.Set(metaKey, meta)
		switch inc := included.(type) {
		case []any:
			return append([]any{marker}, inc...)
		case *ir.Object:
			for _, k := range inc.Keys() {
				v, _ := inc.Get(k)
				marker.Set(k, v)
			}
			return marker
		}
		return included
	}

	out := ir.NewObject()
	for _, k := range obj.Keys() {
		v, _ := obj.Get(k)
		out.Set(k, r.resolve(v, dir, depth+1))
	}
	return out
}

// include loads the file named by node's $include key. On any failure the
// original node is returned so the problem stays visible in the bundle.
func (r *includeResolver) include(node any, dir string, depth int) any {
	obj, _ := ir.AsObject(node)
	raw, _ := obj.Get(includeKey)
	rel, ok := raw.(string)
	if !ok || rel == "" {
		r.loader.logger.Error("include path must be a non-empty string")
		return node
	}
	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, rel)
	}
	path = filepath.Clean(path)

	if r.active[path] {
		r.loader.logger.Error("circular include detected", "path", path)
		return node
	}

	data, err := readFile(path)
	if err != nil {
		r.loader.logger.Error("include failed", "path", path, "error", err)
		return node
	}
	decoded, err := Decode(path, data)
	if err != nil {
		r.loader.logger.Error("include failed", "path", path, "error", err)
		return node
	}

	r.active[path] = true
	defer delete(r.active, path)
	return r.resolve(decoded, filepath.Dir(path), depth)
}

func hasKey(node any, key string) bool {
	obj, ok := node.(*ir.Object)
	return ok && obj.Has(key)
}

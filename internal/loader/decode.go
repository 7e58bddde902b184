package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/promptforge/internal/ir"
)

// Bundle file formats by extension.
var formats = map[string]func(path string, data []byte) (any, error){
	".json": func(_ string, data []byte) (any, error) { return DecodeJSON(data) },
	".yaml": func(_ string, data []byte) (any, error) { return DecodeYAML(data) },
	".yml":  func(_ string, data []byte) (any, error) { return DecodeYAML(data) },
	".cue":  DecodeCUE,
}

// IsBundleFile reports whether path has a supported bundle extension.
func IsBundleFile(path string) bool {
	_, ok := formats[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Decode decodes data according to path's extension.
// Objects decode to *ir.Object with authored key order; numbers to float64.
func Decode(path string, data []byte) (any, error) {
	decode, ok := formats[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, &LoadError{Code: ErrCodeUnsupported, Path: path, Message: fmt.Sprintf("unsupported bundle format %q", filepath.Ext(path))}
	}
	doc, err := decode(path, data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			if le.Path == "" {
				le.Path = path
			}
			return nil, le
		}
		return nil, &LoadError{Code: ErrCodeDecodeFailed, Path: path, Message: err.Error(), Err: err}
	}
	return doc, nil
}

// DecodeJSON decodes a JSON document, keeping object key order.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := ir.NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key must be a string, got %v", keyTok)
				}
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", key, err)
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := []any{}
			for dec.More() {
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, fmt.Errorf("[%d]: %w", len(arr), err)
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case json.Number:
		return t.Float64()
	default:
		// string, bool, nil
		return t, nil
	}
}

// DecodeYAML decodes a YAML document through yaml.Node so mapping order
// survives.
func DecodeYAML(data []byte) (any, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind == 0 {
		return nil, fmt.Errorf("empty YAML document")
	}
	return yamlNodeValue(&root)
}

func yamlNodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return yamlNodeValue(n.Content[0])
	case yaml.AliasNode:
		return yamlNodeValue(n.Alias)
	case yaml.MappingNode:
		obj := ir.NewObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			var key string
			if err := n.Content[i].Decode(&key); err != nil {
				return nil, &LoadError{Code: ErrCodeDecodeFailed, Line: n.Content[i].Line, Column: n.Content[i].Column, Message: "mapping key must be a string", Err: err}
			}
			val, err := yamlNodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj.Set(key, val)
		}
		return obj, nil
	case yaml.SequenceNode:
		arr := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			val, err := yamlNodeValue(c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		return arr, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, &LoadError{Code: ErrCodeDecodeFailed, Line: n.Line, Column: n.Column, Message: err.Error(), Err: err}
		}
		switch num := v.(type) {
		case int:
			return float64(num), nil
		case int64:
			return float64(num), nil
		case uint64:
			return float64(num), nil
		}
		return v, nil
	}
	return nil, &LoadError{Code: ErrCodeDecodeFailed, Line: n.Line, Column: n.Column, Message: fmt.Sprintf("unsupported YAML node kind %d", n.Kind)}
}

// DecodeCUE evaluates a CUE file and exports its concrete value.
//
// Bundle keys that start with '_' or '$' ("_meta", "$include", "$lt")
// must be quoted in CUE; unquoted '_' labels are hidden fields and are
// not exported.
func DecodeCUE(path string, data []byte) (any, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(path, err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(path, err)
	}
	return cueValue(v)
}

func cueValue(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.StructKind:
		obj := ir.NewObject()
		iter, err := v.Fields()
		if err != nil {
			return nil, err
		}
		for iter.Next() {
			val, err := cueValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj.Set(iter.Label(), val)
		}
		return obj, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, err
		}
		arr := []any{}
		for iter.Next() {
			val, err := cueValue(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		return arr, nil
	case cue.StringKind:
		return v.String()
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		return v.Float64()
	case cue.NullKind:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported CUE value kind %v at %v", v.Kind(), v.Path())
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(path string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: ErrCodeDecodeFailed, Path: path, Message: err.Error(), Err: err}
	}
	first := errs[0]
	le := &LoadError{Code: ErrCodeDecodeFailed, Path: path, Message: first.Error(), Err: err}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Line = positions[0].Line()
		le.Column = positions[0].Column()
	}
	return le
}

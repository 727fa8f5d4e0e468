// Package workflow implements the Workflow Engine: a DAG-like interpreter
// over four fixed step kinds, sharing a JSON variable context resolved
// through ${source:path[:default]} string interpolation. Variable-token
// scanning is generalized from the teacher's orchestration/workflow_engine.go
// resolveValue, which matched a string only when it was wholly "${...}";
// here a string may contain several tokens interleaved with literal text.
package workflow

import (
	"encoding/json"
	"strings"

	"github.com/gomind-contrib/llmgateway/internal/domain"
)

// Context is the per-execution, in-memory variable scope: the original
// request plus the output of every successful step other than a
// Conditional one, keyed by name.
// Mutated by the executor only (append on step success).
type Context struct {
	Request json.RawMessage
	Steps   map[string]json.RawMessage
}

func NewContext(request json.RawMessage) *Context {
	return &Context{Request: request, Steps: make(map[string]json.RawMessage)}
}

func (c *Context) RecordStep(name string, output json.RawMessage) {
	c.Steps[name] = output
}

// ResolveString scans s for ${source:path} / ${source:path:default} tokens
// and substitutes each, returning the fully-resolved string. A missing
// path with no default is reported as an error naming the offending token.
func (c *Context) ResolveString(s string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "${")
		if start == -1 {
			b.WriteString(s[i:])
			break
		}
		start += i
		b.WriteString(s[i:start])
		end := strings.Index(s[start:], "}")
		if end == -1 {
			// Unterminated token: treat the rest as literal text.
			b.WriteString(s[start:])
			break
		}
		end += start
		token := s[start+2 : end]
		resolved, err := c.resolveToken(token)
		if err != nil {
			return "", err
		}
		b.WriteString(resolved)
		i = end + 1
	}
	return b.String(), nil
}

func (c *Context) resolveToken(token string) (string, error) {
	parts := strings.SplitN(token, ":", 3)
	if len(parts) < 2 {
		return "", domain.NewValidationError("workflow.resolve", "malformed variable reference: ${"+token+"}")
	}
	source := parts[0]
	var (
		path    string
		def     string
		hasDef  bool
	)

	switch source {
	case "request":
		path = parts[1]
		if len(parts) == 3 {
			def, hasDef = parts[2], true
		}
		return resolvePath(c.Request, path, def, hasDef)
	case "step":
		// step:<name>:<dotted.path>[:default] — <name> consumes the
		// second colon-field, so re-split the remainder for path/default.
		rest := strings.SplitN(token, ":", 4)
		if len(rest) < 3 {
			return "", domain.NewValidationError("workflow.resolve", "malformed step reference: ${"+token+"}")
		}
		stepName := rest[1]
		path = rest[2]
		if len(rest) == 4 {
			def, hasDef = rest[3], true
		}
		out, ok := c.Steps[stepName]
		if !ok {
			if hasDef {
				return def, nil
			}
			return "", domain.NewNotFoundError("workflow.resolve", "referenced step not found or not yet executed: "+stepName)
		}
		return resolvePath(out, path, def, hasDef)
	default:
		return "", domain.NewValidationError("workflow.resolve", "unrecognized variable source: "+source)
	}
}

// resolvePath walks a dotted path inside a JSON document. A scalar
// substitutes its stringified form; an object/array substitutes its
// compact JSON serialization.
func resolvePath(doc json.RawMessage, path, def string, hasDef bool) (string, error) {
	var root interface{}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &root); err != nil {
			return "", domain.NewInternalError("workflow.resolve", "context document is not valid JSON", err)
		}
	}
	value, ok := lookupDotted(root, path)
	if !ok {
		if hasDef {
			return def, nil
		}
		return "", domain.NewNotFoundError("workflow.resolve", "path not found: "+path)
	}
	return stringifyValue(value)
}

func lookupDotted(root interface{}, path string) (interface{}, bool) {
	if path == "" {
		return root, true
	}
	cur := root
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func stringifyValue(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	case float64, int, int64:
		enc, err := json.Marshal(t)
		if err != nil {
			return "", domain.NewInternalError("workflow.resolve", "failed to stringify scalar", err)
		}
		return string(enc), nil
	default:
		enc, err := json.Marshal(t)
		if err != nil {
			return "", domain.NewInternalError("workflow.resolve", "failed to serialize object/array", err)
		}
		return string(enc), nil
	}
}

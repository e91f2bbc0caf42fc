// Package transform implements the InputTemplate placeholder language used by
// pipe targets (spec §4.1.d): <aws.pipes.*> context variables and
// <$.dotted.path> jsonpath extraction against the (possibly enriched) event.
package transform

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var placeholderPattern = regexp.MustCompile(`<(.*?)>`)

// InputTransformer applies one pipe's InputTemplate to each event passed
// through it. One instance is built per pipe (its pipe/source/target ARNs
// never change across invocations) and reused across every poll batch.
type InputTransformer struct {
	template  string
	pipeArn   string
	pipeName  string
	sourceArn string
	targetArn string
	nowFunc   func() time.Time
}

func New(template, pipeArn, pipeName, sourceArn, targetArn string) *InputTransformer {
	return &InputTransformer{
		template:  template,
		pipeArn:   pipeArn,
		pipeName:  pipeName,
		sourceArn: sourceArn,
		targetArn: targetArn,
		nowFunc:   time.Now,
	}
}

// Transform applies the InputTemplate to a single decoded event and returns
// a string (the common case), the event/sub-object itself (when the whole
// template resolves to one placeholder holding an object or array), or the
// parsed JSON value (when the template starts with '{' and the rendered
// text parses as JSON).
func (t *InputTransformer) Transform(event interface{}) interface{} {
	replacements := t.buildReplacements(event)
	return replacePlaceholders(t.template, replacements)
}

func (t *InputTransformer) buildReplacements(event interface{}) map[string]interface{} {
	replacements := map[string]interface{}{
		"aws.pipes.pipe-arn":             t.pipeArn,
		"aws.pipes.pipe-name":            t.pipeName,
		"aws.pipes.source-arn":           t.sourceArn,
		"aws.pipes.target-arn":           t.targetArn,
		"aws.pipes.event.ingestion-time": t.nowFunc().UTC().Format(time.RFC3339),
		"aws.pipes.event.json":           event,
		"aws.pipes.event":                event,
	}

	for _, placeholder := range placeholderPattern.FindAllStringSubmatch(t.template, -1) {
		key := placeholder[1]
		if strings.HasPrefix(key, "$.") {
			replacements[key] = extractJSONPath(event, key)
		}
	}
	return replacements
}

func replacePlaceholders(template string, replacements map[string]interface{}) interface{} {
	stripped := strings.TrimSpace(template)

	// A template that is exactly one placeholder returns the value unserialized
	// when that value is an object or array, preserving its type rather than
	// collapsing it to a string.
	if m := placeholderPattern.FindStringSubmatch(stripped); m != nil && m[0] == stripped {
		value, ok := replacements[m[1]]
		if ok {
			switch value.(type) {
			case map[string]interface{}, []interface{}:
				return value
			}
		}
	}

	result := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := replacements[key]
		if !ok {
			return ""
		}
		return stringifyReplacement(value)
	})

	if strings.HasPrefix(stripped, "{") {
		var reparsed interface{}
		if err := json.Unmarshal([]byte(result), &reparsed); err == nil {
			return reparsed
		}
	}
	return result
}

func stringifyReplacement(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]interface{}, []interface{}, bool:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return strings.Trim(string(b), `"`)
	}
}

// extractJSONPath implements the dotted-path subset of jsonpath the original
// implementation supports: "$.a.b.c" walks nested maps, returning "" the
// moment a key is missing or the current value isn't a map.
func extractJSONPath(event interface{}, path string) interface{} {
	if !strings.HasPrefix(path, "$.") {
		return ""
	}
	current := event
	for _, key := range strings.Split(path[2:], ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current, ok = m[key]
		if !ok {
			return ""
		}
	}
	return current
}

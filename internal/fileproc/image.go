package fileproc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// processImage runs the vision branch (spec §4.3 "Image"): a class-specific
// vision prompt produces structured JSON, which [analysisToText] renders
// into bilingual readable text for ingestion. A barcode scan always runs on
// the raw bytes in parallel with nothing else — it is cheap and
// independent of classification.
func (s *Service) processImage(ctx context.Context, req Request, class Class) (text, raw, barcode string, err error) {
	prompt, ok := classPrompts[string(class)]
	if !ok {
		prompt = classPrompts[string(ClassNote)]
	}
	b64 := base64.StdEncoding.EncodeToString(req.Data)
	raw, err = s.deps.Gateway.VisionAnalyse(ctx, b64, req.Mime, prompt)
	if err != nil {
		return "", "", "", fmt.Errorf("fileproc: vision analyse: %w", err)
	}

	code, _, found := s.scanner.Scan(req.Data)
	if found {
		barcode = code
	}

	return analysisToText(raw), raw, barcode, nil
}

// analysisToText renders a vision analysis JSON object into readable
// bilingual text: every key becomes a line, with name_ar preserved
// verbatim next to its English counterpart and reference-number-looking
// values (anything with digits) kept untouched rather than reformatted.
func analysisToText(raw string) string {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return raw // not JSON: pass the model's prose straight through.
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		renderField(&b, k, obj[k])
	}
	return strings.TrimSpace(b.String())
}

func renderField(b *strings.Builder, key string, val any) {
	switch v := val.(type) {
	case nil:
		return
	case string:
		if v == "" {
			return
		}
		fmt.Fprintf(b, "%s: %s\n", key, v)
	case []any:
		if len(v) == 0 {
			return
		}
		fmt.Fprintf(b, "%s:\n", key)
		for _, item := range v {
			switch it := item.(type) {
			case map[string]any:
				parts := make([]string, 0, len(it))
				for ik, iv := range it {
					parts = append(parts, fmt.Sprintf("%s=%v", ik, iv))
				}
				sort.Strings(parts)
				fmt.Fprintf(b, "  - %s\n", strings.Join(parts, ", "))
			default:
				fmt.Fprintf(b, "  - %v\n", it)
			}
		}
	default:
		fmt.Fprintf(b, "%s: %v\n", key, v)
	}
}

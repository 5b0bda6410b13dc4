package fileproc

import (
	"context"
	"encoding/base64"
	"strings"
)

// classify picks one of [Classes] for the file, using the extension/mime
// as a first pass and falling back to the vision classifier for anything
// ambiguous (spec §4.3: "chosen by a lightweight vision/file-type
// classifier").
func (s *Service) classify(ctx context.Context, req Request) (Class, error) {
	switch {
	case isAudioMime(req.Mime, req.Filename):
		return ClassAudioRecording, nil
	case isPDFMime(req.Mime, req.Filename):
		return ClassPDFDocument, nil
	case isImageMime(req.Mime, req.Filename):
		return s.classifyImage(ctx, req)
	default:
		return ClassNote, nil
	}
}

// classifyImage asks the vision model to name one of [imageClasses] for
// the image, then matches the reply the same best-effort way
// [llmgateway.Gateway.Classify] matches text labels.
func (s *Service) classifyImage(ctx context.Context, req Request) (Class, error) {
	b64 := base64.StdEncoding.EncodeToString(req.Data)
	prompt := "Reply with exactly one of these labels, nothing else: " + strings.Join(imageClasses, ", ")
	out, err := s.deps.Gateway.VisionAnalyse(ctx, b64, req.Mime, prompt)
	if err != nil {
		return ClassNote, nil // degrade to the safest branch rather than fail classification.
	}
	out = strings.ToLower(strings.TrimSpace(out))
	for _, c := range imageClasses {
		if strings.Contains(out, c) {
			return Class(c), nil
		}
	}
	return ClassNote, nil
}

// imageClasses are the subset of [Classes] the vision classifier may pick
// between; audio/PDF are already resolved by MIME/extension above.
var imageClasses = []string{
	string(ClassInvoice), string(ClassOfficialDocument), string(ClassPersonalPhoto),
	string(ClassInfoImage), string(ClassNote), string(ClassProjectFile),
	string(ClassPriceList), string(ClassBusinessCard), string(ClassInventoryItem),
}

func isAudioMime(mime, filename string) bool {
	return strings.HasPrefix(mime, "audio/") || hasAnyExt(filename, ".wav", ".mp3", ".m4a", ".ogg", ".flac")
}

func isPDFMime(mime, filename string) bool {
	return mime == "application/pdf" || hasAnyExt(filename, ".pdf")
}

func isImageMime(mime, filename string) bool {
	return strings.HasPrefix(mime, "image/") || hasAnyExt(filename, ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp")
}

func hasAnyExt(filename string, exts ...string) bool {
	lower := strings.ToLower(filename)
	for _, e := range exts {
		if strings.HasSuffix(lower, e) {
			return true
		}
	}
	return false
}

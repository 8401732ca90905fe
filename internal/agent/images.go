package agent

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/probelabs/probe-agent/internal/llm"
	"github.com/probelabs/probe-agent/internal/tool/builtin"
)

// imagePathRE finds file-path references with image extensions in tool
// output. Deliberately conservative: a false positive costs an image-load
// attempt on a path that fails validation, a loose pattern would attach
// unrelated files the model never asked about.
var imagePathRE = regexp.MustCompile(`(?i)(?:^|[\s"'` + "`" + `(=])((?:/|\./|~/)?[\w@%+-]+(?:[/\\][\w@%+.-]+)*\.(?:png|jpe?g|gif|webp))`)

// harvestImagePaths scans tool output for image file references, resolves
// them against workdir, validates each, and returns the absolute paths that
// are loadable images and not already in seen. seen is not mutated.
func harvestImagePaths(output, workdir string, seen map[string]bool) []string {
	var found []string
	for _, m := range imagePathRE.FindAllStringSubmatch(output, -1) {
		p := m[1]
		if !filepath.IsAbs(p) {
			p = filepath.Join(workdir, p)
		}
		p = filepath.Clean(p)
		if seen[p] || containsPath(found, p) {
			continue
		}
		if _, _, err := builtin.ValidateImage(p); err != nil {
			continue
		}
		found = append(found, p)
	}
	return found
}

func containsPath(paths []string, p string) bool {
	for _, q := range paths {
		if q == p {
			return true
		}
	}
	return false
}

// imagePart loads an image file into a data-URL content part.
func imagePart(path string) (llm.ContentPart, error) {
	mime, _, err := builtin.ValidateImage(path)
	if err != nil {
		return llm.ContentPart{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return llm.ContentPart{}, fmt.Errorf("reading image %q: %w", path, err)
	}
	return llm.ContentPart{
		Type:     llm.PartImage,
		ImageURL: fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)),
		MimeType: mime,
	}, nil
}

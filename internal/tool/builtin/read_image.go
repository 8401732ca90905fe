package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/probelabs/probe-agent/internal/tool"
)

// maxImageBytes caps how much image data one readImage call may load.
const maxImageBytes = 20 * 1024 * 1024

// imageMIMEs are the content types the loop will attach to a user turn.
var imageMIMEs = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// ReadImageTool validates an image file and stages it for attachment to the
// next user turn. The image bytes themselves travel through Result.Images;
// the text output only confirms the load.
type ReadImageTool struct {
	confine *Confine
}

func NewReadImageTool(confine *Confine) *ReadImageTool {
	return &ReadImageTool{confine: confine}
}

func (t *ReadImageTool) Name() string { return "readImage" }
func (t *ReadImageTool) Description() string {
	return "Load an image file (png, jpeg, gif, webp) so it can be inspected visually. Maximum size 20 MB."
}

func (t *ReadImageTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "path", Type: "string", Description: "Path to the image file", Required: true},
	)
}

func (t *ReadImageTool) Init(_ context.Context) error { return nil }
func (t *ReadImageTool) Close() error                 { return nil }

type readImageArgs struct {
	Path string `json:"path"`
}

func (t *ReadImageTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a readImageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Result{Error: fmt.Sprintf("parsing arguments: %v", err)}, nil
	}
	if strings.TrimSpace(a.Path) == "" {
		return tool.Result{Error: "the path parameter is required"}, nil
	}

	resolved, err := t.confine.Resolve(a.Path)
	if err != nil {
		return tool.Result{Error: "Error: " + err.Error()}, nil
	}

	mime, size, err := ValidateImage(resolved)
	if err != nil {
		return tool.Result{Error: "Error: " + err.Error()}, nil
	}

	return tool.Result{
		Output: fmt.Sprintf("Loaded image %s (%s, %d bytes). It is attached to the next message.", a.Path, mime, size),
		Images: []string{resolved},
	}, nil
}

func (t *ReadImageTool) Metadata() tool.Metadata {
	return tool.Metadata{Kind: tool.KindNative, ProducesImages: true}
}

// ValidateImage checks existence, the size cap, and the sniffed MIME type.
// It returns the MIME type and size so callers can report them. Shared with
// the dispatcher's discovered-image harvesting.
func ValidateImage(path string) (mime string, size int64, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("cannot access image %q: %w", path, err)
	}
	if info.IsDir() {
		return "", 0, fmt.Errorf("%q is a directory, not an image", path)
	}
	if info.Size() > maxImageBytes {
		return "", 0, fmt.Errorf("image %q is %d bytes, exceeding the 20 MB limit", path, info.Size())
	}

	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening image %q: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := f.Read(head)
	mime = http.DetectContentType(head[:n])
	if !imageMIMEs[mime] {
		return "", 0, fmt.Errorf("%q is not a supported image format (detected %s)", path, mime)
	}
	return mime, info.Size(), nil
}

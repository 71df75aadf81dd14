package bridge

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// readFile loads a file below the static root. An empty path or a path
// ending with / stands for the index.html of that directory.
func (m *ModuleCtx) readFile(p, ext string) ([]byte, string, error) {
	if p == "" || strings.HasSuffix(p, "/") {
		p = path.Join(p, "index.html")
		ext = "html"
	}

	// never leave the static root
	rel := path.Clean("/" + p)
	full := filepath.Join(m.conf().StaticDir, filepath.FromSlash(rel))

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFileUnavailable, err)
	}

	return data, contentType(ext), nil
}

func contentType(ext string) string {
	switch ext {
	case "":
		return "text/plain"
	case "js":
		return "text/javascript"
	default:
		return "text/" + ext
	}
}

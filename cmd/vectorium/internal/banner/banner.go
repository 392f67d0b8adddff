package banner

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed banner.txt
var bannerFS embed.FS

// LocalName is the file next to the configuration that replaces the
// embedded banner when present.
const LocalName = "banner.txt"

// Print writes the banner followed by the release line to w. A banner.txt
// in configDir takes precedence over the embedded one.
func Print(w io.Writer, configDir, release string) error {
	data, err := os.ReadFile(filepath.Join(configDir, LocalName))
	if err != nil {
		if data, err = fs.ReadFile(bannerFS, "banner.txt"); err != nil {
			return fmt.Errorf("failed to read banner: %w", err)
		}
	}
	_, err = fmt.Fprintf(w, "%s\n  %s\n\n", data, release)
	return err
}

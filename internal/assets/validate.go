// Package assets copies validated static files (images, stylesheets,
// scripts, fonts) from configured source trees into the output tree.
package assets

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxAssetSize is the hard ceiling for a single asset file.
const MaxAssetSize = 50 << 20 // 50 MiB

// allowedExtensions is the extension allow-list for static assets.
var allowedExtensions = map[string]struct{}{
	// images
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".webp": {}, ".ico": {},
	// stylesheets and scripts
	".css": {}, ".js": {}, ".mjs": {}, ".map": {},
	// fonts
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
	// documents and archives
	".pdf": {}, ".txt": {}, ".xml": {}, ".json": {}, ".zip": {}, ".gz": {},
}

// blockedFilenames are sensitive names that must never reach the output
// tree, regardless of extension.
var blockedFilenames = map[string]struct{}{
	".htaccess": {}, ".htpasswd": {}, ".env": {}, ".gitignore": {},
	"web.config": {}, "nginx.conf": {},
	"crossdomain.xml": {}, "clientaccesspolicy.xml": {},
}

// executableMIMEPrefixes flag MIME types that indicate executables or shared
// libraries.
var executableMIMEPrefixes = []string{
	"application/x-executable",
	"application/x-sharedlib",
	"application/x-mach-binary",
	"application/x-msdownload",
	"application/vnd.microsoft.portable-executable",
}

// ValidateFile applies the asset validation rules in order, returning the
// first failure: regular file, allowed extension, size ceiling, MIME type,
// filename block-list.
func ValidateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("asset %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("asset %s: not a regular file", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := allowedExtensions[ext]; !ok {
		return fmt.Errorf("asset %s: extension %q not allowed", path, ext)
	}

	if info.Size() > MaxAssetSize {
		return fmt.Errorf("asset %s: size %d exceeds %d byte limit", path, info.Size(), MaxAssetSize)
	}

	if mt := mime.TypeByExtension(ext); mt != "" {
		for _, prefix := range executableMIMEPrefixes {
			if strings.HasPrefix(mt, prefix) {
				return fmt.Errorf("asset %s: executable MIME type %s", path, mt)
			}
		}
	}

	name := strings.ToLower(filepath.Base(path))
	if _, blocked := blockedFilenames[name]; blocked {
		return fmt.Errorf("asset %s: filename is blocked", path)
	}
	return nil
}

// upToDate reports whether dst already reflects src. The destination is
// considered current only when it exists, is not older than the source, and
// when the timestamps are within one second of each other the sizes also
// match (coarse filesystem timestamps cannot order such writes).
func upToDate(src, dst string) bool {
	si, err := os.Stat(src)
	if err != nil {
		return false
	}
	di, err := os.Stat(dst)
	if err != nil {
		return false
	}
	if di.ModTime().Before(si.ModTime()) {
		return false
	}
	delta := di.ModTime().Sub(si.ModTime())
	if delta < 0 {
		delta = -delta
	}
	if delta <= time.Second && di.Size() != si.Size() {
		return false
	}
	return true
}

//go:build !dev

package resources

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"io/fs"
	"net/http"
	"sync"
)

//go:embed static/*
var staticFS embed.FS

var (
	digestsOnce sync.Once
	digests     map[string]string
)

// Handler serves the embedded static files. URLs from StaticPath carry a
// content digest, so responses are cached for a year.
func Handler() http.Handler {
	fsys, _ := fs.Sub(staticFS, "static")
	fileServer := http.FileServer(http.FS(fsys))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		http.StripPrefix("/static/", fileServer).ServeHTTP(w, r)
	})
}

// StaticPath returns the URL path for a static asset, versioned by the
// digest of its embedded content.
func StaticPath(path string) string {
	digestsOnce.Do(func() {
		digests = make(map[string]string)
		_ = fs.WalkDir(staticFS, "static", func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			data, err := staticFS.ReadFile(p)
			if err != nil {
				return err
			}
			sum := sha256.Sum256(data)
			digests[p[len("static/"):]] = hex.EncodeToString(sum[:6])
			return nil
		})
	})
	if v, ok := digests[path]; ok {
		return "/static/" + path + "?v=" + v
	}
	return "/static/" + path
}

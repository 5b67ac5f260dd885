// Package fetcher turns input sources into local files. A source is a local
// path, an http(s) URL, or either of those pointing at a zip archive.
package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Resolver maps sources to local paths, downloading and unpacking into a
// cache directory as needed.
type Resolver struct {
	fetcher  Fetcher
	cacheDir string
}

// NewResolver creates a Resolver. cacheDir is created on first use.
func NewResolver(f Fetcher, cacheDir string) *Resolver {
	return &Resolver{fetcher: f, cacheDir: cacheDir}
}

// IsRemote reports whether src is an http(s) URL.
func IsRemote(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Resolve returns a local file for src. Remote sources are downloaded once
// and reused from the cache. When the file is a zip archive it is extracted
// and the first entry with extension ext (e.g. ".shp") is returned.
func (r *Resolver) Resolve(ctx context.Context, src, ext string) (string, error) {
	local := src
	if IsRemote(src) {
		p, err := r.download(ctx, src)
		if err != nil {
			return "", err
		}
		local = p
	}

	if !strings.EqualFold(filepath.Ext(local), ".zip") || strings.EqualFold(ext, ".zip") {
		return local, nil
	}

	dest := filepath.Join(r.cacheDir, cacheKey(local)+"-unzipped")
	files, err := ExtractZIP(local, dest)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: unpack %s", src)
	}
	found, ok := FindByExt(files, ext)
	if !ok {
		return "", eris.Errorf("fetcher: no %s file in %s", ext, src)
	}
	return found, nil
}

func (r *Resolver) download(ctx context.Context, src string) (string, error) {
	if err := os.MkdirAll(r.cacheDir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create cache dir")
	}

	u, _ := url.Parse(src)
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		base = "download"
	}
	dest := filepath.Join(r.cacheDir, cacheKey(src)+"-"+base)

	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		zap.L().Debug("fetcher: using cached download", zap.String("url", src), zap.String("path", dest))
		return dest, nil
	}

	// Write to a temp name so an interrupted download is never reused.
	tmp := dest + ".part"
	n, err := r.fetcher.DownloadToFile(ctx, src, tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return "", eris.Wrapf(err, "fetcher: download %s", src)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", eris.Wrap(err, "fetcher: finalize download")
	}

	zap.L().Info("fetcher: downloaded source",
		zap.String("url", src),
		zap.String("path", dest),
		zap.Int64("bytes", n),
	)
	return dest, nil
}

func cacheKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:6])
}

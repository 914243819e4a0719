package asset

import (
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Timeout for fetching remote resources.
const fetchTimeout = 30 * time.Second

var httpClient = &http.Client{Timeout: fetchTimeout}

// A streamable local file or remote (http/https) asset.
type Resource struct {
	io.ReadCloser
	url *url.URL
}

// Get the path or URL of this resource.
func (r *Resource) Path() string {
	return r.url.String()
}

// Get the resource name without any leading directories.
func (r *Resource) Name() string {
	return path.Base(r.url.Path)
}

// Get the lower-case file extension of the resource including the dot.
func (r *Resource) Ext() string {
	return strings.ToLower(path.Ext(r.url.Path))
}

// Returns true if the resource is streamed over http/https.
func (r *Resource) IsRemote() bool {
	return r.url.Scheme != ""
}

// Get a filesystem rooted at the directory containing a local resource.
// Remote resources have no filesystem and nil is returned.
func (r *Resource) DirFS() fs.FS {
	if r.IsRemote() {
		return nil
	}
	return os.DirFS(filepath.Dir(r.url.Path))
}

// Open a resource. Relative paths that do not define a scheme are resolved
// against the location of relTo when it is specified; this allows scene
// files to reference meshes and textures stored next to them on disk or on
// the same web server.
//
// The caller must close the returned resource.
func NewResource(pathToResource string, relTo *Resource) (*Resource, error) {
	resURL, err := url.Parse(filepath.ToSlash(pathToResource))
	if err != nil {
		return nil, fmt.Errorf("resource: invalid path %q: %w", pathToResource, err)
	}

	if resURL.Scheme == "" && relTo != nil && !path.IsAbs(resURL.Path) {
		resURL, err = resolveRelative(resURL.Path, relTo)
		if err != nil {
			return nil, err
		}
	}

	var reader io.ReadCloser
	switch resURL.Scheme {
	case "":
		reader, err = os.Open(filepath.Clean(filepath.FromSlash(resURL.Path)))
		if err != nil {
			return nil, err
		}
	case "http", "https":
		resp, err := httpClient.Get(resURL.String())
		if err != nil {
			return nil, fmt.Errorf("resource: could not fetch '%s': %s", resURL.String(), err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("resource: could not fetch '%s': status %d", resURL.String(), resp.StatusCode)
		}
		reader = resp.Body
	default:
		return nil, fmt.Errorf("resource: unsupported scheme '%s'", resURL.Scheme)
	}

	return &Resource{
		ReadCloser: reader,
		url:        resURL,
	}, nil
}

func resolveRelative(relPath string, relTo *Resource) (*url.URL, error) {
	parent := *relTo.url
	if parent.Scheme != "" {
		parent.Path = path.Join(path.Dir(parent.Path), relPath)
		return &parent, nil
	}

	absParent, err := filepath.Abs(filepath.FromSlash(parent.Path))
	if err != nil {
		return nil, fmt.Errorf("resource: could not detect abs path for %s: %w", parent.Path, err)
	}
	return &url.URL{Path: filepath.ToSlash(filepath.Join(filepath.Dir(absParent), relPath))}, nil
}

// Wrap a reader into a resource with the given name.
func NewResourceFromStream(name string, source io.Reader) *Resource {
	resURL, err := url.Parse(filepath.ToSlash(name))
	if err != nil {
		resURL = &url.URL{Path: name}
	}
	return &Resource{
		ReadCloser: io.NopCloser(source),
		url:        resURL,
	}
}

package asset

import (
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalResource(t *testing.T) {
	dir := t.TempDir()
	sceneFile := filepath.Join(dir, "scene.JSON")
	writeFile(t, sceneFile, "scene")

	res, err := NewResource(sceneFile, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()

	if res.IsRemote() {
		t.Fatal("expected local resource")
	}
	if res.Name() != "scene.JSON" || res.Ext() != ".json" {
		t.Fatalf("unexpected name %q or ext %q", res.Name(), res.Ext())
	}
	if data := readAll(t, res); data != "scene" {
		t.Fatalf("expected to read 'scene'; got %q", data)
	}

	if _, err := NewResource(filepath.Join(dir, "missing.json"), nil); !os.IsNotExist(err) {
		t.Fatalf("expected a not-exist error; got %v", err)
	}
}

func TestRelativeLocalResources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "scene.json"), "scene")
	writeFile(t, filepath.Join(dir, "meshes", "teapot.glb"), "mesh")

	parent, err := NewResource(filepath.Join(dir, "scene.json"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer parent.Close()

	res, err := NewResource("meshes/teapot.glb", parent)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()

	if data := readAll(t, res); data != "mesh" {
		t.Fatalf("expected to read 'mesh'; got %q", data)
	}

	// The dir filesystem allows loaders to open sibling files
	fsys := res.DirFS()
	if fsys == nil {
		t.Fatal("expected local resource to provide a dir filesystem")
	}
	if _, err := fs.Stat(fsys, "teapot.glb"); err != nil {
		t.Fatal(err)
	}
}

func TestHttpResource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "scene.json"), "scene")

	server := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer server.Close()

	res, err := NewResource(server.URL+"/scene.json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()
	if !res.IsRemote() || res.DirFS() != nil || res.Name() != "scene.json" {
		t.Fatalf("unexpected remote resource properties for %s", res.Path())
	}

	fetchUrl := server.URL + "/file-not-found.foo"
	expError := fmt.Sprintf("resource: could not fetch '%s': status %d", fetchUrl, 404)
	_, err = NewResource(fetchUrl, nil)
	if err == nil || err.Error() != expError {
		t.Fatalf("expected to get: %s; got %v", expError, err)
	}
}

func TestRelativeHttpResources(t *testing.T) {
	serverHits := 0
	serverFn := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverHits++
		switch r.URL.Path {
		case "/foo/scene.json", "/foo/textures/wood.png":
			w.Write([]byte("OK"))
		default:
			http.NotFound(w, r)
		}
	})
	server := httptest.NewServer(serverFn)
	defer server.Close()

	res1, err := NewResource(server.URL+"/foo/scene.json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res1.Close()
	res2, err := NewResource("textures/wood.png", res1)
	if err != nil {
		t.Fatal(err)
	}
	defer res2.Close()

	if serverHits != 2 {
		t.Fatalf("expected server to receive 2 requests; got %d", serverHits)
	}
	if exp := server.URL + "/foo/textures/wood.png"; res2.Path() != exp {
		t.Fatalf("expected path %s; got %s", exp, res2.Path())
	}
}

func TestUnsupportedResourceScheme(t *testing.T) {
	expError := "resource: unsupported scheme 'gopher'"
	_, err := NewResource("gopher://digging.go", nil)
	if err == nil || err.Error() != expError {
		t.Fatalf("expected to get: %s; got %v", expError, err)
	}
}

func TestResourceConnectionRefusedError(t *testing.T) {
	_, err := NewResource("http://localhost:12345/foo.go", nil)
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected to get 'connection refused error'; got %v", err)
	}
}

func TestResourceFromStream(t *testing.T) {
	res := NewResourceFromStream("embedded/cube.glb", strings.NewReader("payload"))
	defer res.Close()

	if res.Name() != "cube.glb" || res.Ext() != ".glb" || res.IsRemote() {
		t.Fatalf("unexpected stream resource properties for %s", res.Path())
	}
	if data := readAll(t, res); data != "payload" {
		t.Fatalf("expected to read 'payload'; got %q", data)
	}
}

func writeFile(t *testing.T, file, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readAll(t *testing.T, r io.Reader) string {
	t.Helper()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

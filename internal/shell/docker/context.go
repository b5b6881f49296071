package docker

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// =============================================================================
// Build Context
// =============================================================================

// ContextDockerfileName is the name the rendered Dockerfile is injected
// under inside the build context tar.
const ContextDockerfileName = "Dockerfile"

// ignoreFileName is the optional exclusion manifest in the context root.
// Without it, the entire working tree is baked into the image, non-essential
// artifacts included.
const ignoreFileName = ".dockerignore"

// NewBuildContext streams the context directory as a tar archive with the
// rendered Dockerfile injected at the root, replacing any checked-in one.
// The caller owns the returned reader.
func NewBuildContext(contextDir, dockerfile string) (io.ReadCloser, error) {
	info, err := os.Stat(contextDir)
	if err != nil {
		return nil, fmt.Errorf("stat context: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("context %q is not a directory", contextDir)
	}

	patterns, err := loadIgnorePatterns(contextDir)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		tw := tar.NewWriter(pw)
		err := writeContext(tw, contextDir, dockerfile, patterns)
		if cerr := tw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()
	return pr, nil
}

// writeContext tars the directory tree and appends the Dockerfile last so
// it wins over any file with the same name.
func writeContext(tw *tar.Writer, contextDir, dockerfile string, patterns []string) error {
	err := filepath.WalkDir(contextDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(contextDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(rel)

		if Excluded(name, patterns) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		// The injected Dockerfile replaces a checked-in one.
		if name == ContextDockerfileName {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		// Sockets, devices and other irregular files cannot enter a layer.
		if !fi.Mode().IsRegular() && !fi.IsDir() && fi.Mode()&os.ModeSymlink == 0 {
			return nil
		}

		link := ""
		if fi.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(p); err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(fi, link)
		if err != nil {
			return err
		}
		hdr.Name = name
		if fi.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return err
	}

	hdr := &tar.Header{
		Name: ContextDockerfileName,
		Mode: 0644,
		Size: int64(len(dockerfile)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = tw.Write([]byte(dockerfile))
	return err
}

// =============================================================================
// Exclusion Patterns
// =============================================================================

// loadIgnorePatterns reads the context's .dockerignore, if present.
func loadIgnorePatterns(contextDir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(contextDir, ignoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", ignoreFileName, err)
	}

	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		p := strings.TrimSpace(line)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		patterns = append(patterns, path.Clean(strings.TrimSuffix(p, "/")))
	}
	return patterns, nil
}

// Excluded reports whether a slash-separated relative path matches any
// ignore pattern. Supported forms: literal paths, directory prefixes, and
// glob patterns applied to the full path and to the base name. Negation
// ("!") is not supported.
func Excluded(name string, patterns []string) bool {
	for _, p := range patterns {
		if name == p || strings.HasPrefix(name, p+"/") {
			return true
		}
		if ok, _ := path.Match(p, name); ok {
			return true
		}
		if ok, _ := path.Match(p, path.Base(name)); ok {
			return true
		}
	}
	return false
}

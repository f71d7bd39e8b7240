package target

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	gulperrors "github.com/ligustah/gulp/internal/errors"
)

// DefaultFilename is used when the URL has no usable last path segment.
const DefaultFilename = "download.bin"

// Request describes what to fetch and where to put it.
type Request struct {
	// URL is the http or https source.
	URL string

	// Directory receives the file. Default: "."
	Directory string

	// Filename overrides the name derived from URL.
	Filename string

	// Name is a display name. It is not used for resolution.
	Name string
}

// Target is the resolved destination of a download.
type Target struct {
	Path string // absolute file path
	Dir  string // parent directory, exists once Resolve returns
}

// Resolver turns a Request into a Target.
type Resolver struct {
	fs billy.Filesystem
}

// NewResolver returns a Resolver operating on fs. A nil fs means the host
// filesystem.
func NewResolver(fs billy.Filesystem) *Resolver {
	if fs == nil {
		fs = OS()
	}
	return &Resolver{fs: fs}
}

// OS returns a billy filesystem rooted at "/" that accepts the absolute paths
// Resolve produces.
func OS() billy.Filesystem {
	return osfs.New("/")
}

// Resolve computes the destination path for req and creates its directory.
// The destination file itself is not touched.
func (r *Resolver) Resolve(req Request) (Target, error) {
	u, err := ParseURL(req.URL)
	if err != nil {
		return Target{}, err
	}

	name := req.Filename
	if name != "" {
		if err := checkFilename(name); err != nil {
			return Target{}, gulperrors.NewInvalidInputError("resolve", name, err)
		}
	} else {
		name = filenameFromPath(u.Path)
	}

	dir := req.Directory
	if dir == "" {
		dir = "."
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return Target{}, gulperrors.NewFilesystemError("abs", req.Directory, err)
	}

	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return Target{}, gulperrors.NewFilesystemError("mkdir", dir, err)
	}

	return Target{
		Path: filepath.Join(dir, name),
		Dir:  dir,
	}, nil
}

// ParseURL parses raw and requires an absolute http(s) URL with a host.
func ParseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, gulperrors.NewInvalidInputError("parse", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, gulperrors.NewInvalidInputError("parse", raw, gulperrors.ErrInvalidURL)
	}
	if u.Host == "" {
		return nil, gulperrors.NewInvalidInputError("parse", raw, gulperrors.ErrInvalidURL)
	}
	return u, nil
}

// FilenameFromURL returns the last non-empty path segment of raw, or
// DefaultFilename if there is none or raw does not parse.
func FilenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return DefaultFilename
	}
	return filenameFromPath(u.Path)
}

func filenameFromPath(p string) string {
	segments := strings.Split(p, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		s := segments[i]
		if s == "" {
			continue
		}
		if s == "." || s == ".." || strings.ContainsRune(s, '\\') {
			return DefaultFilename
		}
		return s
	}
	return DefaultFilename
}

// checkFilename rejects overrides that would not land directly inside the
// destination directory.
func checkFilename(name string) error {
	if name == "." || name == ".." {
		return gulperrors.ErrUnsafeFilename
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, filepath.Separator) {
		return gulperrors.ErrUnsafeFilename
	}
	if filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return gulperrors.ErrUnsafeFilename
	}
	if path.Base(name) != name {
		return gulperrors.ErrUnsafeFilename
	}
	return nil
}

package workspace

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

const (
	SchemeFile = "file"
	SchemeS3   = "s3"
)

// Location is a parsed concrete storage location.
type Location struct {
	// Workspace is the pipeline-level workspace name the location is bound to.
	Workspace string
	// URI is the location as supplied.
	URI    string
	Scheme string
	// Bucket is set for object-store locations.
	Bucket string
	// Path is the directory for file locations, or the key prefix for
	// object-store locations.
	Path string
}

func (l Location) String() string { return l.URI }

// ParseLocation parses a run-supplied location. Plain paths and file:// URIs
// are local directories; s3://bucket/prefix names an object-store prefix.
func ParseLocation(workspace, raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	loc := Location{Workspace: workspace, URI: raw}
	if raw == "" {
		return loc, &WorkspaceError{Kind: ErrInvalidLocation, Workspace: workspace, Err: fmt.Errorf("empty location")}
	}
	if !strings.Contains(raw, "://") {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return loc, &WorkspaceError{Kind: ErrInvalidLocation, Workspace: workspace, Location: raw, Err: err}
		}
		loc.Scheme = SchemeFile
		loc.Path = abs
		return loc, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return loc, &WorkspaceError{Kind: ErrInvalidLocation, Workspace: workspace, Location: raw, Err: err}
	}
	switch strings.ToLower(u.Scheme) {
	case SchemeFile:
		if u.Path == "" {
			return loc, &WorkspaceError{Kind: ErrInvalidLocation, Workspace: workspace, Location: raw, Err: fmt.Errorf("missing path")}
		}
		loc.Scheme = SchemeFile
		loc.Path = filepath.Clean(u.Path)
	case SchemeS3:
		if u.Host == "" {
			return loc, &WorkspaceError{Kind: ErrInvalidLocation, Workspace: workspace, Location: raw, Err: fmt.Errorf("missing bucket")}
		}
		loc.Scheme = SchemeS3
		loc.Bucket = u.Host
		loc.Path = strings.TrimPrefix(u.Path, "/")
	default:
		return loc, &WorkspaceError{Kind: ErrInvalidLocation, Workspace: workspace, Location: raw,
			Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	return loc, nil
}

// Bindings holds the concrete locations supplied for a run, keyed by
// pipeline-level workspace name.
type Bindings map[string]Location

// ParseBindings parses "name=location" pairs.
func ParseBindings(pairs []string) (Bindings, error) {
	out := make(Bindings, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, &WorkspaceError{Kind: ErrInvalidLocation, Workspace: pair,
				Err: fmt.Errorf("binding must have the form name=location")}
		}
		loc, err := ParseLocation(name, raw)
		if err != nil {
			return nil, err
		}
		out[name] = loc
	}
	return out, nil
}

package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/url"

	"annotationqc/pkg/config"
)

// caseGroup is the template placeholder that names the case
const caseGroup = "CASE"

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Case is one discovered unit of annotation data
type Case struct {
	// ID is the CASE placeholder value, or the base name without extension
	ID string

	// Path is the URL handed to the parser
	Path string

	// Rel is the slash-separated path relative to the data root
	Rel string
}

// templatePattern compiles a path template such as "{CASE}/labels.json" into
// an anchored expression where each placeholder matches one path segment
func templatePattern(template string) (*regexp.Regexp, error) {
	template = strings.Trim(path.Clean(strings.ReplaceAll(template, "\\", "/")), "/")
	var b strings.Builder
	b.WriteString("^")
	last := 0
	for _, loc := range placeholder.FindAllStringSubmatchIndex(template, -1) {
		b.WriteString(regexp.QuoteMeta(template[last:loc[0]]))
		fmt.Fprintf(&b, "(?P<%s>[^/]+)", template[loc[2]:loc[3]])
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(template[last:]))
	b.WriteString("$")
	pattern, err := regexp.Compile(b.String())
	if err != nil {
		return nil, &config.ConfigError{Reason: fmt.Sprintf("invalid path template %q", template), Err: err}
	}
	return pattern, nil
}

// caseID prefers the CASE group and falls back to the base name
func caseID(pattern *regexp.Regexp, match []string, rel string, dir bool) string {
	if i := pattern.SubexpIndex(caseGroup); i > 0 && match[i] != "" {
		return match[i]
	}
	base := path.Base(rel)
	if dir {
		return base
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// discover walks root and returns the cases matching template, sorted by
// relative path. Directory tools match directories, single-file tools files.
func discover(ctx context.Context, fs afs.Service, root, template, fileType string) ([]Case, error) {
	var wantDir bool
	switch fileType {
	case config.FileTypeDirectory:
		wantDir = true
	case config.FileTypeSingle:
	default:
		return nil, &config.ConfigError{Reason: fmt.Sprintf("unknown file_type %q", fileType)}
	}
	pattern, err := templatePattern(template)
	if err != nil {
		return nil, err
	}

	var cases []Case
	visitor := func(ctx context.Context, baseURL, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if info.IsDir() != wantDir {
			return true, nil
		}
		rel := path.Join(parent, info.Name())
		match := pattern.FindStringSubmatch(rel)
		if match == nil {
			return true, nil
		}
		cases = append(cases, Case{
			ID:   caseID(pattern, match, rel, wantDir),
			Path: url.Join(baseURL, rel),
			Rel:  rel,
		})
		return true, nil
	}
	if err := fs.Walk(ctx, root, visitor); err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].Rel < cases[j].Rel })
	return cases, nil
}

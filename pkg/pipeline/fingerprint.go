package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/minio/highwayhash"

	"annotationqc/internal/models"
)

var fingerprintKey = []byte("annotationqc-case-fingerprint-k1")

// Fingerprint hashes a feature set independently of feature order, so two
// cases annotated identically hash alike even when read from different tools
// or files. Coordinates are rounded to 1e-3 normalized units.
func Fingerprint(features []models.AnnotationFeature) (uint64, error) {
	lines := make([]string, len(features))
	for i, f := range features {
		var b strings.Builder
		fmt.Fprintf(&b, "%s|%s|%s", f.View, f.Label, f.Type)
		for _, p := range f.Points {
			fmt.Fprintf(&b, "|%.3f,%.3f", p.X, p.Y)
		}
		lines[i] = b.String()
	}
	sort.Strings(lines)

	hash, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return 0, err
	}
	for _, line := range lines {
		if _, err := hash.Write([]byte(line + "\n")); err != nil {
			return 0, err
		}
	}
	return hash.Sum64(), nil
}

package nrrd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const segHeader = "NRRD0004\n" +
	"# Complete NRRD file format specification at:\n" +
	"type: unsigned char\n" +
	"dimension: 3\n" +
	"space: left-posterior-superior\n" +
	"sizes: 4 4 2\n" +
	"encoding: gzip\n" +
	"Segment0_ID:=Segment_1\n" +
	"Segment0_LabelValue:=1\n" +
	"Segment0_Name:=L1\n" +
	"Segment1_LabelValue:=2\n" +
	"Segment1_Name:=Lumbar\\n2\n" +
	"Segmentation_MasterRepresentation:=Binary labelmap\n" +
	"\n"

func TestReadHeader(t *testing.T) {
	// binary voxel data follows the blank line
	input := segHeader + "\x1f\x8b\x08\x00\x00\x00"
	header, err := ReadHeader(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, "NRRD0004", header.Version)
	assert.Equal(t, "unsigned char", header.Values["type"])
	assert.Equal(t, "4 4 2", header.Values["sizes"])
	assert.Equal(t, "1", header.Values["Segment0_LabelValue"])
	assert.Equal(t, "L1", header.Values["Segment0_Name"])
	assert.Equal(t, "Lumbar\n2", header.Values["Segment1_Name"])
	assert.Equal(t, "Binary labelmap", header.Values["Segmentation_MasterRepresentation"])
	_, ok := header.Values["# Complete NRRD file format specification at"]
	assert.False(t, ok)
}

func TestReadHeaderDetached(t *testing.T) {
	header, err := ReadHeader(strings.NewReader("NRRD0005\ndimension: 2\nkey:=value"))
	require.NoError(t, err)
	assert.Equal(t, "2", header.Values["dimension"])
	assert.Equal(t, "value", header.Values["key"])
}

func TestReadHeaderErrors(t *testing.T) {
	_, err := ReadHeader(strings.NewReader("P6\n640 480\n"))
	assert.True(t, errors.Is(err, ErrNotNRRD))

	_, err = ReadHeader(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ReadHeader(strings.NewReader("NRRD0004\nno separator here\n\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestReaderReadMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Segmentation.seg.nrrd")
	require.NoError(t, os.WriteFile(path, []byte(segHeader), 0644))

	values, err := NewReader(nil).ReadMetadata(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "L1", values["Segment0_Name"])

	_, err = NewReader(nil).ReadMetadata(context.Background(), filepath.Join(t.TempDir(), "missing.seg.nrrd"))
	assert.Error(t, err)
}

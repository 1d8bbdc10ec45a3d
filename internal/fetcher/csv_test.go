package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamCSV(t *testing.T) {
	input := "FacilityID,Region\n100, London \n200,Wales\n"

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{TrimSpace: true})

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	require.NoError(t, <-errCh)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"FacilityID", "Region"}, rows[0])
	assert.Equal(t, []string{"100", "London"}, rows[1])
}

func TestStreamCSVUnevenRows(t *testing.T) {
	input := "a,b,c\n1,2\n1,2,3,4\n"

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	require.NoError(t, <-errCh)
	assert.Len(t, rows, 3)
}

func TestStreamCSVCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rowCh, errCh := StreamCSV(ctx, strings.NewReader("a,b\n1,2\n"), CSVOptions{})

	for range rowCh { //nolint:revive
	}
	assert.Error(t, <-errCh)
}

func TestReadCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("FacilityID,Region\n100,London\n"), 0o644))

	header, rows, err := ReadCSVFile(context.Background(), path, CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"FacilityID", "Region"}, header)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"100", "London"}, rows[0])
}

func TestReadCSVFileMissing(t *testing.T) {
	_, _, err := ReadCSVFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")
}

func TestReadCSVFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, _, err := ReadCSVFile(context.Background(), path, CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}

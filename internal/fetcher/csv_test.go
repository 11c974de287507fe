package fetcher

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainCSV(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_Basic(t *testing.T) {
	input := "MLS,Price,Address\nSW20123456,425000,41200 Sage Road\nSW20123457,519000,58790 Burnt Valley Road\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})

	rows, err := drainCSV(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"MLS", "Price", "Address"}, rows[0])
	assert.Equal(t, []string{"SW20123456", "425000", "41200 Sage Road"}, rows[1])
}

func TestStreamCSV_HeaderRouted(t *testing.T) {
	input := "MLS,Price\nSW20123456,425000\nSW20123457,519000\n"
	headerCh := make(chan []string, 1)

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	rows, err := drainCSV(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"SW20123456", "425000"}, rows[0])
	assert.Equal(t, []string{"MLS", "Price"}, <-headerCh)
}

func TestStreamCSV_HeaderSkippedWithoutChannel(t *testing.T) {
	input := "MLS,Price\nSW20123456,425000\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
	})

	rows, err := drainCSV(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"SW20123456", "425000"}, rows[0])
}

func TestStreamCSV_TrimSpace(t *testing.T) {
	input := " MLS , Price \n SW20123456 , 425000 \n"
	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	rows, err := drainCSV(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"SW20123456", "425000"}, rows[0])
	assert.Equal(t, []string{"MLS", "Price"}, <-headerCh)
}

func TestStreamCSV_LazyQuotes(t *testing.T) {
	input := `MLS,Address
SW20123456,41200 "Sage" Road
`
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		LazyQuotes: true,
	})

	rows, err := drainCSV(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestStreamCSV_VariableFields(t *testing.T) {
	input := "a,b,c\n1,2\n3,4,5,6\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})

	rows, err := drainCSV(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Len(t, rows[1], 2)
	assert.Len(t, rows[2], 4)
}

func TestStreamCSV_Empty(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(""), CSVOptions{})

	rows, err := drainCSV(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// errReader fails on the first Read.
type errReader struct{}

func (*errReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestStreamCSV_ReadError(t *testing.T) {
	r := io.MultiReader(strings.NewReader("MLS,Price\n"), &errReader{})
	rowCh, errCh := StreamCSV(context.Background(), r, CSVOptions{})

	_, err := drainCSV(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}

func TestStreamCSV_CancelledMidStream(t *testing.T) {
	var sb strings.Builder
	for range 10000 {
		sb.WriteString("SW20123456,425000,41200 Sage Road\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	rowCh, errCh := StreamCSV(ctx, strings.NewReader(sb.String()), CSVOptions{})

	<-rowCh
	cancel()
	for range rowCh { //nolint:revive // drain
	}

	var gotErr error
	for err := range errCh {
		gotErr = err
	}
	// The goroutine may finish its buffered rows before noticing the cancel.
	if gotErr != nil {
		assert.Contains(t, gotErr.Error(), "context cancelled")
	}
}

func TestStreamCSV_CancelledBeforeHeaderSend(t *testing.T) {
	input := "MLS,Price\nSW20123456,425000\n"
	headerCh := make(chan []string) // unbuffered so the send blocks

	ctx, cancel := context.WithCancel(context.Background())
	rowCh, errCh := StreamCSV(ctx, strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})
	cancel()

	for range rowCh { //nolint:revive // drain
	}
	var gotErr error
	for err := range errCh {
		gotErr = err
	}
	if gotErr != nil {
		assert.Contains(t, gotErr.Error(), "context cancelled")
	}
}

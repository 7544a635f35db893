package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    any
		wantErr bool
	}{
		{name: "default is yahoo", opts: Options{}, want: &yahooDataProvider{}},
		{name: "massive", opts: Options{Name: "massive", APIKey: "k"}, want: &massiveDataProvider{}},
		{name: "polygon alias", opts: Options{Name: "Polygon", APIKey: "k"}, want: &massiveDataProvider{}},
		{name: "massive without key", opts: Options{Name: "massive"}, wantErr: true},
		{name: "synthetic", opts: Options{Name: "synthetic", Seed: 3}, want: &synthDataProvider{}},
		{name: "csv", opts: Options{Name: "csv", DataDir: "testdata"}, want: &localFileDataProvider{}},
		{name: "csv without dir", opts: Options{Name: "csv"}, wantErr: true},
		{name: "csv self fallback", opts: Options{Name: "csv", DataDir: "x", Fallback: "local"}, wantErr: true},
		{name: "unknown", opts: Options{Name: "bloomberg"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Open(tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, p)
		})
	}
}

func TestOpen_CSVWithFallback(t *testing.T) {
	p, err := Open(Options{Name: "csv", DataDir: t.TempDir(), Fallback: "synthetic", Seed: 9})
	require.NoError(t, err)

	local, ok := p.(*localFileDataProvider)
	require.True(t, ok)
	assert.IsType(t, &synthDataProvider{}, local.Secondary())
}

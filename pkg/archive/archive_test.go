package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/config"
)

func fixedID() string { return "0000-id" }

func TestKeyer_Key(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		buildID  uint
		filename string
		want     string
	}{
		{
			name:     "default prefix",
			prefix:   "imports",
			buildID:  3,
			filename: "results.csv",
			want:     "imports/builds/3/0000-id-results.csv",
		},
		{
			name:     "slashes trimmed",
			prefix:   "/team/rtd/",
			buildID:  12,
			filename: "run.json",
			want:     "team/rtd/builds/12/0000-id-run.json",
		},
		{
			name:     "empty prefix",
			prefix:   "",
			buildID:  1,
			filename: "r.csv",
			want:     "builds/1/0000-id-r.csv",
		},
		{
			name:     "client directories stripped",
			prefix:   "imports",
			buildID:  1,
			filename: "../../etc/results.csv",
			want:     "imports/builds/1/0000-id-results.csv",
		},
		{
			name:     "windows path stripped",
			prefix:   "imports",
			buildID:  1,
			filename: `C:\reports\results.csv`,
			want:     "imports/builds/1/0000-id-results.csv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newKeyer(tt.prefix)
			k.newID = fixedID

			assert.Equal(t, tt.want, k.key(tt.buildID, tt.filename))
		})
	}
}

func TestKeyer_UniqueByDefault(t *testing.T) {
	k := newKeyer("imports")

	assert.NotEqual(t, k.key(1, "a.csv"), k.key(1, "a.csv"))
}

func TestDetectContentType(t *testing.T) {
	assert.Contains(t, detectContentType("results.json"), "application/json")
	assert.Equal(t, "application/octet-stream", detectContentType("results"))
}

func TestLocalArchiver(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archive")
	ctx := context.Background()

	a, err := New(logrus.New(), &config.ArchiveConfig{
		Enabled: true,
		Prefix:  "imports",
		Local:   &config.LocalArchiveConfig{Dir: dir},
	})
	require.NoError(t, err)

	require.NoError(t, a.Preflight(ctx))
	assert.FileExists(t, filepath.Join(dir, preflightObject))

	content := []byte("name,module,status,duration\nlogin,auth,PASS,1.2\n")

	key, err := a.Archive(ctx, 7, "results.csv", content)
	require.NoError(t, err)
	assert.Regexp(t, `^imports/builds/7/[0-9a-f-]{36}-results\.csv$`, key)

	got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestNew_NoBackend(t *testing.T) {
	_, err := New(logrus.New(), &config.ArchiveConfig{Enabled: true})
	require.Error(t, err)
}

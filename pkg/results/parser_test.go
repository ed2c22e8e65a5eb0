package results

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected Format
		wantErr  bool
	}{
		{name: "csv", filename: "results.csv", expected: FormatCSV},
		{name: "json", filename: "results.json", expected: FormatJSON},
		{name: "upper case csv", filename: "RESULTS.CSV", expected: FormatCSV},
		{name: "mixed case json", filename: "nightly.Json", expected: FormatJSON},
		{name: "nested path", filename: "out/run-1/results.csv", expected: FormatCSV},
		{name: "txt", filename: "results.txt", wantErr: true},
		{name: "no suffix", filename: "results", wantErr: true},
		{name: "empty", filename: "", wantErr: true},
		{name: "suffix only in the middle", filename: "results.csv.bak", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.filename)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnsupportedFormat)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParse_CSV(t *testing.T) {
	content := "testCaseName,module,status,duration\n" +
		"login, auth ,PASS, 1.2\n" +
		"logout,auth,fail,0.5,extra,columns\r\n" +
		"short,line\n" +
		"\n" +
		"checkout,cart,Blocked,3\n"

	rows, err := Parse(FormatCSV, []byte(content))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "login", rows[0].TestCaseName)
	assert.Equal(t, "auth", rows[0].Module)
	assert.Equal(t, "PASS", rows[0].Status)
	require.NotNil(t, rows[0].Duration)
	assert.InDelta(t, 1.2, *rows[0].Duration, 1e-9)

	assert.Equal(t, "logout", rows[1].TestCaseName)
	assert.Equal(t, "fail", rows[1].Status, "status stays raw")
	assert.InDelta(t, 0.5, *rows[1].Duration, 1e-9)

	assert.Equal(t, "checkout", rows[2].TestCaseName)
	assert.Equal(t, "Blocked", rows[2].Status)
}

func TestParse_CSVHeaderNeverContributes(t *testing.T) {
	// The header is discarded even when it looks like a valid data line.
	content := "login,auth,PASS,1.0\nlogout,auth,PASS,2.0\n"

	rows, err := Parse(FormatCSV, []byte(content))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "logout", rows[0].TestCaseName)
}

func TestParse_CSVShortLinesSkipped(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "three fields", line: "a,b,PASS"},
		{name: "trailing separator", line: "a,b,PASS,"},
		{name: "separators only", line: ",,,"},
		{name: "blank", line: ""},
		{name: "single field", line: "lonely"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "h1,h2,h3,h4\n" + tt.line + "\nok,mod,PASS,1\n"

			rows, err := Parse(FormatCSV, []byte(content))
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "ok", rows[0].TestCaseName)
		})
	}
}

func TestParse_CSVMalformedDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration string
	}{
		{name: "word", duration: "fast"},
		{name: "whitespace only", duration: "  "},
		{name: "nan", duration: "NaN"},
		{name: "infinity", duration: "Inf"},
		{name: "comma decimal", duration: "1;5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "h\nfirst,mod,PASS,1\nsecond,mod,PASS," + tt.duration + "\n"

			rows, err := Parse(FormatCSV, []byte(content))
			require.Error(t, err)
			assert.Nil(t, rows)
			assert.ErrorIs(t, err, ErrMalformedContent)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, 3, perr.Line)
		})
	}
}

func TestParse_CSVEmptyName(t *testing.T) {
	_, err := Parse(FormatCSV, []byte("h\n  ,mod,PASS,1\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedContent)
}

func TestParse_CSVEmptyInput(t *testing.T) {
	rows, err := Parse(FormatCSV, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = Parse(FormatCSV, []byte("only,a,header,line"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParse_JSON(t *testing.T) {
	content := `[
		{"testCaseName": "login", "module": "auth", "status": "pass", "duration": 1.2},
		{"testCaseName": "logout", "module": "auth", "status": "FAIL", "duration": null},
		{"testCaseName": "search", "status": "BLOCKED", "owner": "qa"}
	]`

	rows, err := Parse(FormatJSON, []byte(content))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "login", rows[0].TestCaseName)
	assert.Equal(t, "pass", rows[0].Status)
	require.NotNil(t, rows[0].Duration)
	assert.InDelta(t, 1.2, *rows[0].Duration, 1e-9)

	assert.Equal(t, "logout", rows[1].TestCaseName)
	assert.Nil(t, rows[1].Duration)

	assert.Equal(t, "search", rows[2].TestCaseName)
	assert.Empty(t, rows[2].Module)
	assert.Nil(t, rows[2].Duration)
}

func TestParse_JSONPreservesCountAndOrder(t *testing.T) {
	content := `[
		{"testCaseName": "c", "module": "", "status": "PASS", "duration": 1},
		{"testCaseName": "a", "module": "", "status": "PASS", "duration": 2},
		{"testCaseName": "c", "module": "", "status": "FAIL", "duration": 3},
		{"testCaseName": "b", "module": "", "status": "PASS", "duration": 4}
	]`

	rows, err := Parse(FormatJSON, []byte(content))
	require.NoError(t, err)
	require.Len(t, rows, 4)

	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.TestCaseName)
	}

	assert.Equal(t, []string{"c", "a", "c", "b"}, names)
}

func TestParse_JSONMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "object instead of array", content: `{"testCaseName": "x"}`},
		{name: "null", content: `null`},
		{name: "truncated", content: `[{"testCaseName": "x"`},
		{name: "string duration", content: `[{"testCaseName": "x", "status": "PASS", "duration": "1.0"}]`},
		{name: "numeric status", content: `[{"testCaseName": "x", "status": 1}]`},
		{name: "missing name", content: `[{"status": "PASS", "duration": 1}]`},
		{name: "null element", content: `[null]`},
		{name: "trailing garbage", content: `[] []`},
		{name: "empty", content: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := Parse(FormatJSON, []byte(tt.content))
			require.Error(t, err)
			assert.Nil(t, rows)
			assert.ErrorIs(t, err, ErrMalformedContent)
		})
	}
}

func TestParse_JSONEmptyArray(t *testing.T) {
	rows, err := Parse(FormatJSON, []byte(" [ ] "))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParse_UnknownFormat(t *testing.T) {
	_, err := Parse(Format("xml"), []byte("<results/>"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSplitFields(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c", "d"}, splitFields("a,b,c,d"))
	assert.Equal(t, []string{"a", "", "c", "d"}, splitFields("a,,c,d"))
	assert.Equal(t, []string{"a", "b", "c"}, splitFields("a,b,c,,"))
	assert.Empty(t, splitFields(""))
	assert.Empty(t, splitFields(",,"))
}

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Code    string            `json:"pin"`
	Count   int               `json:"count"`
	Labels  map[string]string `json:"labels,omitempty"`
	Missing *string           `json:"missing"`
}

func TestPrinter_Formats(t *testing.T) {
	v := sample{Code: "01234567", Count: 2, Labels: map[string]string{"a": "b"}}
	text := func(w io.Writer) error {
		_, err := fmt.Fprintln(w, "plain")
		return err
	}

	var buf bytes.Buffer
	p := &Printer{Format: "text", Out: &buf}
	require.NoError(t, p.Print(v, text))
	assert.Equal(t, "plain\n", buf.String())

	buf.Reset()
	p.Format = "json"
	require.NoError(t, p.Print(v, text))
	assert.Contains(t, buf.String(), `"pin": "01234567"`)

	buf.Reset()
	p.Format = "yaml"
	require.NoError(t, p.Print(v, text))
	out := buf.String()
	// Digit-only strings stay strings; keys follow the json tags in order.
	assert.Contains(t, out, `pin: "01234567"`)
	assert.Contains(t, out, "missing: null")
	assert.NotContains(t, out, "{")
	assert.Less(t, strings.Index(out, "pin:"), strings.Index(out, "count: 2"))
}

func TestPrinter_Logf(t *testing.T) {
	var out, diag bytes.Buffer
	p := &Printer{Format: "json", Out: &out, Err: &diag}

	p.Logf("quiet %d", 1)
	assert.Empty(t, diag.String())

	p.Verbose = true
	p.Logf("loud %d", 2)
	assert.Equal(t, "loud 2\n", diag.String())
	assert.Empty(t, out.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "archive", errors.New("boom"))))
	assert.Equal(t, ExitCommandError, GetExitCode(errors.New("unknown command")))

	wrapped := fmt.Errorf("outer: %w", NewExitError(ExitFailure, "inner"))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "archive: boom", WrapExitError(ExitFailure, "archive", errors.New("boom")).Error())
}

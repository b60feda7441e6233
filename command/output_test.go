package command

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommand(asJSON bool) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Bool(JSONOutputFlag, false, "")

	if asJSON {
		_ = cmd.Flags().Set(JSONOutputFlag, "true")
	}

	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	return cmd, out, errOut
}

func TestOutputter_Text(t *testing.T) {
	t.Parallel()

	cmd, out, errOut := newTestCommand(false)

	outputter := InitializeOutputter(cmd)
	outputter.SetCommandResult(&MessageResult{Message: "done"})
	outputter.WriteOutput()

	assert.Equal(t, "done\n", out.String())
	assert.Empty(t, errOut.String())
}

func TestOutputter_JSON(t *testing.T) {
	t.Parallel()

	cmd, out, _ := newTestCommand(true)

	outputter := InitializeOutputter(cmd)
	outputter.SetCommandResult(&MessageResult{Message: "done"})
	outputter.WriteOutput()

	var decoded MessageResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "done", decoded.Message)
}

func TestOutputter_Error(t *testing.T) {
	t.Parallel()

	cmd, out, errOut := newTestCommand(false)

	outputter := InitializeOutputter(cmd)
	outputter.SetCommandResult(&MessageResult{Message: "done"})
	outputter.SetError(errors.New("boom"))
	outputter.WriteOutput()

	require.True(t, outputter.HasError())
	assert.Empty(t, out.String())
	assert.Equal(t, "Error: boom\n", errOut.String())
}

func TestFormatKV(t *testing.T) {
	t.Parallel()

	out := FormatKV([]string{"Nonce|7", "Token|"})

	assert.Contains(t, out, "Nonce = 7")
	assert.Contains(t, out, "Token = <none>")
}

package command

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/ryanuber/columnize"
	"github.com/spf13/cobra"
)

const JSONOutputFlag = "json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CommandResult is the result of a command, rendered as text or as JSON
type CommandResult interface {
	GetOutput() string
}

// OutputFormatter collects the results and the error of a command and writes them once it finishes
type OutputFormatter interface {
	SetError(err error)
	SetCommandResult(result CommandResult)
	WriteCommandResult(result CommandResult)
	WriteOutput()
	HasError() bool
}

// InitializeOutputter picks the output format from the --json flag of the command
func InitializeOutputter(cmd *cobra.Command) OutputFormatter {
	asJSON, _ := cmd.Flags().GetBool(JSONOutputFlag)

	return &outputter{
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		asJSON: asJSON,
	}
}

type outputter struct {
	out    io.Writer
	errOut io.Writer
	asJSON bool

	results []CommandResult
	err     error
}

func (o *outputter) SetError(err error) {
	o.err = err
}

func (o *outputter) HasError() bool {
	return o.err != nil
}

func (o *outputter) SetCommandResult(result CommandResult) {
	o.results = append(o.results, result)
}

// WriteCommandResult writes an intermediate result immediately
func (o *outputter) WriteCommandResult(result CommandResult) {
	o.write(result)
}

func (o *outputter) WriteOutput() {
	if o.err != nil {
		if o.asJSON {
			raw, _ := json.Marshal(map[string]string{"error": o.err.Error()})
			_, _ = fmt.Fprintln(o.errOut, string(raw))
		} else {
			_, _ = fmt.Fprintf(o.errOut, "Error: %v\n", o.err)
		}

		return
	}

	for _, result := range o.results {
		o.write(result)
	}
}

func (o *outputter) write(result CommandResult) {
	if o.asJSON {
		raw, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			_, _ = fmt.Fprintf(o.errOut, "Error: failed to encode output: %v\n", err)

			return
		}

		_, _ = fmt.Fprintln(o.out, string(raw))

		return
	}

	_, _ = fmt.Fprint(o.out, result.GetOutput())
}

// MessageResult is a plain message
type MessageResult struct {
	Message string `json:"message"`
}

func (r *MessageResult) GetOutput() string {
	return r.Message + "\n"
}

// Results renders several results one after another
type Results []CommandResult

func (r Results) GetOutput() string {
	var buffer bytes.Buffer

	for _, result := range r {
		buffer.WriteString(result.GetOutput())
	}

	return buffer.String()
}

// FormatKV formats "key|value" rows as aligned key = value lines
func FormatKV(in []string) string {
	columnConf := columnize.DefaultConfig()
	columnConf.Empty = "<none>"
	columnConf.Glue = " = "

	return columnize.Format(in, columnConf)
}

// FormatList formats "a|b|c" rows as aligned columns
func FormatList(in []string) string {
	columnConf := columnize.DefaultConfig()
	columnConf.Empty = "<none>"

	return columnize.Format(in, columnConf)
}

// FormatTitle wraps a section title the way every command prints it
func FormatTitle(title string) string {
	return fmt.Sprintf("\n[%s]\n", strings.ToUpper(title))
}

package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/furyaxyz/elysium-bridge/command"
)

// Version and Commit are set at build time with -ldflags
var (
	Version = "development"
	Commit  = ""
)

// GetCommand returns the version command
func GetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Returns the current version of the bridge node",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			outputter := command.InitializeOutputter(cmd)
			defer outputter.WriteOutput()

			outputter.SetCommandResult(&versionResult{
				Version:   Version,
				Commit:    Commit,
				GoVersion: runtime.Version(),
			})
		},
	}
}

type versionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"goVersion"`
}

func (r *versionResult) GetOutput() string {
	return command.FormatKV([]string{
		fmt.Sprintf("Version|%s", r.Version),
		fmt.Sprintf("Commit|%s", r.Commit),
		fmt.Sprintf("Go|%s", r.GoVersion),
	}) + "\n"
}

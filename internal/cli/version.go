package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mydehq/anitrack/internal/version"
)

var flagVersionJSON bool

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print the version number",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationConfigOptional: ""},
	Run: func(cmd *cobra.Command, args []string) {
		if flagVersionJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(version.Current()); err != nil {
				fatal("Failed to encode version", err)
			}
			return
		}
		fmt.Printf("anitrack %s\n", version.String())
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&flagVersionJSON, "json", false, "Print build details as JSON")
}

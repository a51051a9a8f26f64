package main

import (
	"os"
	"runtime"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=... -X main.revision=..."
var (
	version  = "dev"
	revision = "unknown"
)

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.SetOut(os.Stdout)
	versionCmd.Flags().BoolP("short", "s", false, "Print only the version")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		if lo.Must(cmd.Flags().GetBool("short")) {
			cmd.Println(version)
			return
		}
		cmd.Printf("media-dl %s\n  revision: %s\n  go: %s\n  platform: %s/%s\n",
			version, revision, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

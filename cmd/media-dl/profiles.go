package main

import (
	"os"
	"strings"

	"github.com/handiism/media-downloader/internal/profile"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.SetOut(os.Stdout)
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the built-in client profiles in the order they are tried",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, p := range profile.Default().Ordered() {
			var caps []string
			if p.Capabilities.AdaptiveStreams {
				caps = append(caps, "adaptive")
			}
			if p.Capabilities.HLS {
				caps = append(caps, "hls")
			}
			fingerprint := p.Fingerprint
			if fingerprint == "" {
				fingerprint = "go"
			}
			cmd.Printf("%d. %s\n   tls: %s, streams: %s\n   user-agent: %s\n",
				p.Rank+1, p.Name, fingerprint, strings.Join(caps, ", "), p.Header("User-Agent"))
		}
	},
}

func completeProfiles(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return profile.Default().Names(), cobra.ShellCompDirectiveNoFileComp
}

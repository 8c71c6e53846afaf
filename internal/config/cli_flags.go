package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Write logs as JSON")
	cmd.PersistentFlags().StringSlice("proxy", nil, "Outbound HTTP/SOCKS5 proxies for direct fetches (rotated)")
	cmd.PersistentFlags().Duration("timeout", DefaultHTTPTimeout, "Per-attempt timeout for direct fetches")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
	cmd.PersistentFlags().StringArrayP("header", "H", nil, "Extra request header for direct fetches, \"Key: Value\" (repeatable)")
	cmd.PersistentFlags().String("render-backend", "", "Rendered fetch backend: proxy, chrome or none")
	cmd.PersistentFlags().String("config", "", "Path to configuration file (optional)")
}

// internal/cli/key.go
package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/law-makers/landed/internal/auth"
	"github.com/law-makers/landed/internal/ui"
	"github.com/spf13/cobra"
)

// keyCmd groups the proxy API key commands. They run before any
// configuration is loaded so a missing key can be fixed.
var keyCmd = &cobra.Command{
	Use:         "key",
	Short:       "Manage the stored rendering proxy API key",
	Annotations: map[string]string{skipAppAnnotation: ""},
}

var keySetCmd = &cobra.Command{
	Use:   "set [key]",
	Short: "Store the proxy API key in the system keyring",
	Long: `Stores the key used by the rendering proxy backend. Without an argument the
key is read from stdin, which keeps it out of shell history.
LANDED_PROXY_API_KEY still takes precedence when set.`,
	Example: `  landed key set < proxy.key`,
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := ""
		if len(args) == 1 {
			key = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read key from stdin: %w", err)
			}
			key = line
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("key must not be empty")
		}

		if err := auth.Save(auth.ProxyAPIKey, key); err != nil {
			return fmt.Errorf("failed to store key: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("Proxy API key stored"))
		return nil
	},
}

var keyDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored proxy API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := auth.Delete(auth.ProxyAPIKey); err != nil {
			return fmt.Errorf("failed to delete key: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("Proxy API key removed"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keySetCmd, keyDeleteCmd)
}

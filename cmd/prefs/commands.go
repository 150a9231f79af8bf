package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kalambet/prefs/internal/config"
	"github.com/kalambet/prefs/internal/preferences"
)

// --- get / set / remove ---

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the value stored under key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(s *preferences.Store) error {
			value, ok, err := s.Get(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s is not set in %s", args[0], s.Configuration())
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		})
	},
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store value under key, replacing any previous value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		return withStore(cmd, func(s *preferences.Store) error {
			if err := s.Set(key, value); err != nil {
				return err
			}
			printSuccess(cmd.ErrOrStderr(), "Set %s = %s", key, value)
			return nil
		})
	},
}

var removeCmd = &cobra.Command{
	Use:     "remove <key>",
	Aliases: []string{"rm"},
	Short:   "Delete key; succeeds when the key is absent",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(s *preferences.Store) error {
			if err := s.Remove(args[0]); err != nil {
				return err
			}
			printSuccess(cmd.ErrOrStderr(), "Removed %s", args[0])
			return nil
		})
	},
}

// --- clear / keys ---

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every key in the store",
	Long: `Delete every key in the store.

For named:<name> stores only keys under that namespace are removed.
For legacy and group:<id> stores there is no prefix, so EVERY key in the
backing store is removed, including keys written by other applications.
Clearing the legacy store also removes this tool's own settings (the
named:prefs namespace) and its generated API token.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		return withStore(cmd, func(s *preferences.Store) error {
			if !confirm {
				printWarning(cmd.ErrOrStderr(), "This will delete every key in %s. Use --confirm to proceed.", s.Configuration())
				return nil
			}
			if err := s.RemoveAll(); err != nil {
				return err
			}
			printSuccess(cmd.ErrOrStderr(), "Cleared %s", s.Configuration())
			return nil
		})
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List keys in the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(s *preferences.Store) error {
			keys, err := s.Keys()
			if err != nil {
				return err
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		})
	},
}

func init() {
	clearCmd.Flags().Bool("confirm", false, "confirm deletion")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, closeFn, err := openBackend()
		if err != nil {
			return err
		}
		defer closeFn()

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		_, r, closeFn, err := openBackend()
		if err != nil {
			return err
		}
		defer closeFn()

		if err := config.SetKey(r, key, value); err != nil {
			return err
		}
		printSuccess(cmd.ErrOrStderr(), "Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "prefs version %s\n", version)
	},
}

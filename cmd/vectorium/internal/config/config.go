package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-kratos/kratos/v2/encoding"
	kjson "github.com/go-kratos/kratos/v2/encoding/json"
	"github.com/spf13/cobra"

	"github.com/go-lynx/vectorium/cmd/vectorium/internal/base"
	"github.com/go-lynx/vectorium/conf"
)

var force bool

// CmdConfig groups the configuration file commands.
var CmdConfig = &cobra.Command{
	Use:   "config",
	Short: "Manage the host configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var cmdInit = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := base.ResolveConfigPath()
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := conf.Save(path, conf.Default()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var cmdShow = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, path, err := base.LoadConfig()
		if err != nil {
			return err
		}
		out, err := Render(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s\n", path, out)
		return nil
	},
}

func init() {
	cmdInit.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	CmdConfig.AddCommand(cmdInit)
	CmdConfig.AddCommand(cmdShow)
}

// Render returns cfg as indented JSON, as it would be saved.
func Render(cfg *conf.Config) (string, error) {
	raw, err := encoding.GetCodec(kjson.Name).Marshal(cfg)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return "", err
	}
	return buf.String(), nil
}

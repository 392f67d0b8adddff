package scan

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/go-lynx/vectorium"
	"github.com/go-lynx/vectorium/cmd/vectorium/internal/base"
	"github.com/go-lynx/vectorium/loader"
)

var (
	dir     string
	builtin bool
	inspect bool
)

// CmdScan lists the plugin libraries in the plugin directory.
var CmdScan = &cobra.Command{
	Use:   "scan",
	Short: "List plugin libraries in the plugin directory",
	Example: `  # List libraries and read their descriptors
  vectorium scan --inspect`,
	RunE: runE,
}

func init() {
	CmdScan.Flags().StringVarP(&dir, "dir", "d", "", "directory to scan (defaults to pluginDirectory)")
	CmdScan.Flags().BoolVar(&builtin, "builtin", false, "scan the compiled-in sample plugins")
	CmdScan.Flags().BoolVarP(&inspect, "inspect", "i", false, "open each library and print its descriptor")
}

func runE(cmd *cobra.Command, _ []string) error {
	cfg, path, err := base.LoadConfig()
	if err != nil {
		return err
	}
	cfg.AutoScan = false
	closeLog, err := base.InitLogging(cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	opts := vectorium.ManagerOptions{Config: cfg, ConfigPath: path}
	if builtin {
		opts.Loader = base.BuiltinLoader(cfg.PluginDirectory)
	}
	m := vectorium.NewPluginManager(opts)
	defer func() { _ = m.Shutdown() }()

	if _, err := m.Scan(dir); err != nil {
		return err
	}
	return Print(cmd.OutOrStdout(), m, opts.Loader, inspect)
}

// Print writes the discovered plugins as a table. With inspect set, each
// library is opened through l and its descriptor is shown.
func Print(out io.Writer, m *vectorium.PluginManager, l loader.Loader, inspect bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if inspect {
		fmt.Fprintln(w, "NAME\tVERSION\tREQUIRES\tPATH")
	} else {
		fmt.Fprintln(w, "NAME\tENABLED\tPATH")
	}
	cfg := m.Config()
	for _, info := range m.Discovered() {
		if !inspect {
			fmt.Fprintf(w, "%s\t%v\t%s\n", info.Name, cfg.IsEnabled(info.Name), info.Path)
			continue
		}
		version, requires := describe(l, info.Path)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Name, version, requires, info.Path)
	}
	return w.Flush()
}

func describe(l loader.Loader, path string) (string, string) {
	if l == nil {
		l = loader.NativeLoader{}
	}
	lib, err := l.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", path, err)
		return "?", "?"
	}
	defer func() { _ = lib.Close() }()
	d, err := loader.Descriptor(lib)
	if err != nil {
		return "invalid", err.Error()
	}
	var req []string
	for _, s := range d.Required() {
		req = append(req, s.Name)
	}
	if len(req) == 0 {
		return d.Version, "-"
	}
	return d.Version, strings.Join(req, ",")
}

package setup

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

const usage = `PharmaGuard MCP Server Setup

Usage:
  mcp-server-lite setup <command> [options]

Commands:
  client    Register the server in claude_desktop_config.json
  status    Show the current setup status

Run "mcp-server-lite setup <command> --help" for command options.
`

// CLI runs the setup subcommands.
type CLI struct {
	out            io.Writer
	defaultDataDir string
}

// NewCLI creates a CLI writing to out. defaultDataDir is reported when the
// client entry does not override it.
func NewCLI(out io.Writer, defaultDataDir string) *CLI {
	return &CLI{out: out, defaultDataDir: defaultDataDir}
}

// Run executes the subcommand named by args[0].
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.out, usage)
		return nil
	}

	switch args[0] {
	case "client":
		return c.configure(args[1:])
	case "status":
		return c.status(args[1:])
	case "help", "--help", "-h":
		fmt.Fprint(c.out, usage)
		return nil
	default:
		fmt.Fprint(c.out, usage)
		return fmt.Errorf("unknown setup command %q", args[0])
	}
}

func (c *CLI) configure(args []string) error {
	fs := pflag.NewFlagSet("client", pflag.ContinueOnError)
	fs.SetOutput(c.out)
	var opts Options
	fs.StringVar(&opts.ConfigPath, "config", "", "client config file (default: per-OS location)")
	fs.StringVarP(&opts.BinaryPath, "binary", "b", "", "server binary (default: this executable)")
	fs.StringVarP(&opts.DataDir, "data-dir", "d", "", "data directory for feedback and exports")
	fs.StringVar(&opts.Transport, "transport", "", "transport override (stdio or http)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if opts.BinaryPath == "" {
		if exe, err := os.Executable(); err == nil {
			opts.BinaryPath = exe
		}
	}

	entry, err := Configure(opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Registered %q -> %s\n", SERVER_KEY, entry.Command)
	fmt.Fprintln(c.out, "Restart the MCP client to load the server.")
	return nil
}

func (c *CLI) status(args []string) error {
	fs := pflag.NewFlagSet("status", pflag.ContinueOnError)
	fs.SetOutput(c.out)
	configPath := fs.String("config", "", "client config file (default: per-OS location)")
	asJSON := fs.Bool("json", false, "print status as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	status, err := GetStatus(*configPath, c.defaultDataDir)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	fmt.Fprintf(c.out, "Client config:  %s\n", status.ConfigPath)
	fmt.Fprintf(c.out, "Registered:     %t\n", status.Configured)
	if status.BinaryPath != "" {
		fmt.Fprintf(c.out, "Server binary:  %s\n", status.BinaryPath)
	}
	fmt.Fprintf(c.out, "Data directory: %s\n", status.DataDir)
	fmt.Fprintf(c.out, "Feedback DB:    %t\n", status.FeedbackDB)
	for _, issue := range status.Issues {
		fmt.Fprintf(c.out, "  ! %s\n", issue)
	}
	return nil
}

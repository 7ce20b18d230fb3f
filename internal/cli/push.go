package cli

import (
	"context"
	"errors"
	"flag"
	"net/http"

	"github.com/google/subcommands"

	"github.com/i474232898/meshcore-heatmap/internal/client"
)

type pushCmd struct {
	env *Env

	server string
}

func (*pushCmd) Name() string     { return "push" }
func (*pushCmd) Synopsis() string { return "Upload ping samples from a JSON file to a remote server." }
func (*pushCmd) Usage() string {
	return "push -server <url> <file>\n\tPosts the samples to <url>/ping-samples/bulk, retrying on 429 and 5xx.\n"
}

func (c *pushCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.server, "server", "http://localhost:8080", "base URL of the heatmap server")
}

func (c *pushCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	path := f.Arg(0)

	samples, err := readSamples(path)
	if errors.Is(err, errFileNotFound) {
		return c.env.errorf("File not found: %s", path)
	}
	if err != nil {
		return c.env.errorf("%v", err)
	}

	remote, err := client.New(c.server, &http.Client{Timeout: c.env.Config.HTTPTimeout}, client.DefaultBackoff)
	if err != nil {
		return c.env.errorf("%v", err)
	}
	stored, err := remote.PushSamples(ctx, samples)
	if err != nil {
		return c.env.errorf("Failed to push samples: %v", err)
	}
	c.env.printf("Pushed %d ping samples from %s to %s", len(stored), path, c.server)
	return subcommands.ExitSuccess
}

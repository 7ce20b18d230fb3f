package cli

import (
	"context"
	"flag"
	"time"

	"github.com/google/subcommands"
)

type pruneCmd struct {
	env *Env

	olderThan time.Duration
}

func (*pruneCmd) Name() string     { return "prune" }
func (*pruneCmd) Synopsis() string { return "Delete ping samples older than a duration." }
func (*pruneCmd) Usage() string {
	return "prune -older-than <duration>\n\tFor example: prune -older-than 720h\n"
}

func (c *pruneCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.olderThan, "older-than", 0, "delete samples created before now minus this duration (required)")
}

func (c *pruneCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.olderThan <= 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	svc, s, _, err := c.env.openService(ctx)
	if err != nil {
		return c.env.errorf("Failed to open database: %v", err)
	}
	defer s.Close()

	n, err := svc.Prune(ctx, c.olderThan)
	if err != nil {
		return c.env.errorf("Failed to prune samples: %v", err)
	}
	c.env.printf("Deleted %d ping samples older than %s", n, c.olderThan)
	return subcommands.ExitSuccess
}

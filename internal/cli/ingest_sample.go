package cli

import (
	"context"
	"errors"
	"flag"

	"github.com/google/subcommands"
)

type ingestSampleCmd struct {
	env *Env
}

func (*ingestSampleCmd) Name() string     { return "ingest-sample" }
func (*ingestSampleCmd) Synopsis() string { return "Ingest ping samples from a JSON file." }
func (*ingestSampleCmd) Usage() string {
	return "ingest-sample <file>\n\tThe file holds one sample object or an array of them.\n"
}
func (*ingestSampleCmd) SetFlags(*flag.FlagSet) {}

func (c *ingestSampleCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	svc, s, _, err := c.env.openService(ctx)
	if err != nil {
		return c.env.errorf("Failed to open database: %v", err)
	}
	defer s.Close()

	stored, err := svc.IngestBatch(ctx, samples)
	if err != nil {
		return c.env.errorf("Failed to ingest samples: %v", err)
	}
	c.env.printf("Ingested %d ping samples from %s", len(stored), path)
	return subcommands.ExitSuccess
}

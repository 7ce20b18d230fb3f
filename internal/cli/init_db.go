package cli

import (
	"context"
	"flag"

	"github.com/google/subcommands"
)

type initDBCmd struct {
	env *Env
}

func (*initDBCmd) Name() string     { return "init-db" }
func (*initDBCmd) Synopsis() string { return "Create database tables." }
func (*initDBCmd) Usage() string {
	return "init-db\n\tApply pending migrations to the configured database.\n"
}
func (*initDBCmd) SetFlags(*flag.FlagSet) {}

func (c *initDBCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	_, s, target, err := c.env.openService(ctx)
	if err != nil {
		return c.env.errorf("Failed to initialize database: %v", err)
	}
	defer s.Close()

	c.env.printf("Database initialized at %s", target.Redacted)
	return subcommands.ExitSuccess
}

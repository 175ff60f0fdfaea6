// Command firmowyctl runs maintenance tasks against the firmowy database.
//
//	firmowyctl [-db DSN] migrate [up|status]
//	firmowyctl [-db DSN] createuser [-manager] [-first NAME] [-last NAME] USERNAME
//	firmowyctl [-db DSN] grant USERNAME ROLE
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"firmowy/internal/auth"
	"firmowy/internal/config"
	"firmowy/internal/db"
)

const usage = `usage: firmowyctl [-db DSN] <command> [args]

commands:
  migrate [up|status]   apply or list schema migrations
  createuser USERNAME   create an account, prompting for the password
  grant USERNAME ROLE   add a role to an account`

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	flags := flag.NewFlagSet("firmowyctl", flag.ContinueOnError)
	dsn := flags.String("db", cfg.DBDSN, "PostgreSQL DSN")
	flags.Usage = func() { fmt.Fprintln(flags.Output(), usage) }
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return errors.New("missing command")
	}

	conn, err := db.Open(ctx, *dsn, db.Pool{MaxOpenConns: 2})
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer conn.Close()

	cmd, rest := flags.Arg(0), flags.Args()[1:]
	switch cmd {
	case "migrate":
		mode := "up"
		if len(rest) > 0 {
			mode = rest[0]
		}
		switch mode {
		case "up":
			return db.RunMigrations(ctx, conn)
		case "status":
			return db.MigrationStatus(ctx, conn)
		default:
			return fmt.Errorf("migrate: unknown mode %q", mode)
		}
	case "createuser":
		return createUser(ctx, auth.NewStore(conn), rest, os.Stdin, os.Stdout)
	case "grant":
		return grant(ctx, auth.NewStore(conn), rest, os.Stdout)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

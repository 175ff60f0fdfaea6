package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"firmowy/internal/auth"
)

type accounts interface {
	EnsureRole(ctx context.Context, name, description string) (*auth.Role, error)
	Create(ctx context.Context, nu auth.NewUser) (*auth.User, error)
	GrantRole(ctx context.Context, username, roleName string) error
}

// promptPassword reads the password without echo from a terminal, or as a
// single line when stdin is piped.
func promptPassword(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Password: ")
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		fmt.Fprint(out, "Repeat password: ")
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func createUser(ctx context.Context, store accounts, args []string, in io.Reader, out io.Writer) error {
	flags := flag.NewFlagSet("createuser", flag.ContinueOnError)
	flags.SetOutput(out)
	manager := flags.Bool("manager", false, "grant the Manager role")
	first := flags.String("first", "", "first name")
	last := flags.String("last", "", "last name")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("createuser: expected exactly one USERNAME")
	}

	password, err := promptPassword(in, out)
	if err != nil {
		return err
	}
	nu := auth.NewUser{Username: flags.Arg(0), Password: password, FirstName: *first, LastName: *last}
	if *manager {
		if _, err := store.EnsureRole(ctx, auth.ManagerRole, "Full access, can assign tasks"); err != nil {
			return err
		}
		nu.Roles = []string{auth.ManagerRole}
	}
	u, err := store.Create(ctx, nu)
	if err != nil {
		return fmt.Errorf("createuser: %w", err)
	}
	fmt.Fprintf(out, "created user %s (id %d)\n", u.Username, u.ID)
	return nil
}

func grant(ctx context.Context, store accounts, args []string, out io.Writer) error {
	if len(args) != 2 {
		return errors.New("grant: expected USERNAME ROLE")
	}
	if err := store.GrantRole(ctx, args[0], args[1]); err != nil {
		return fmt.Errorf("grant: %w", err)
	}
	fmt.Fprintf(out, "granted %s to %s\n", args[1], args[0])
	return nil
}

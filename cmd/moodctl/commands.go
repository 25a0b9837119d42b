package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	moodjournal "github.com/MrEthical07/moodjournal"
	"github.com/MrEthical07/moodjournal/api"
)

type usageError string

func (e usageError) Error() string { return string(e) }

func usagef(format string, args ...any) error {
	return usageError(fmt.Sprintf(format, args...))
}

// run executes one command. The session is resolved first so that commands
// see restored credentials.
func run(ctx context.Context, c *moodjournal.Client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usagef("missing command")
	}
	c.Init(ctx)

	switch args[0] {
	case "login":
		if len(args) != 3 {
			return usagef("usage: login <email> <password>")
		}
		if err := c.Login(ctx, args[1], args[2]); err != nil {
			return err
		}
		u, _ := c.CurrentUser()
		return writeJSON(out, u)
	case "logout":
		return c.Logout(ctx)
	case "whoami":
		u, ok := c.CurrentUser()
		if !ok {
			_, err := fmt.Fprintln(out, "not logged in")
			return err
		}
		return writeJSON(out, u)
	case "entries":
		return runEntries(ctx, c.Entries(), args[1:], out)
	case "admin":
		return runAdmin(ctx, c.Admin(), args[1:], out)
	default:
		return usagef("unknown command %q", args[0])
	}
}

func runEntries(ctx context.Context, entries *api.EntryAPI, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usagef("usage: entries list|get|create|update|delete|restore")
	}

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("entries list", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		opts := api.DefaultListOptions()
		fs.IntVar(&opts.Limit, "limit", opts.Limit, "page size")
		fs.IntVar(&opts.Offset, "offset", 0, "page offset")
		fs.BoolVar(&opts.Deleted, "deleted", false, "list deleted entries")
		if err := fs.Parse(args[1:]); err != nil {
			return usagef("entries list: %v", err)
		}
		page, err := entries.List(ctx, opts)
		if err != nil {
			return err
		}
		return writeJSON(out, page)
	case "create":
		if len(args) < 2 {
			return usagef("usage: entries create <feeling> [note]")
		}
		e, err := entries.Create(ctx, api.EditEntryRequest{Feeling: args[1], Note: strings.Join(args[2:], " ")})
		if err != nil {
			return err
		}
		return writeJSON(out, e)
	case "update":
		if len(args) < 3 {
			return usagef("usage: entries update <id> <feeling> [note]")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		e, err := entries.Update(ctx, id, api.EditEntryRequest{Feeling: args[2], Note: strings.Join(args[3:], " ")})
		if err != nil {
			return err
		}
		return writeJSON(out, e)
	case "get", "delete", "restore":
		if len(args) != 2 {
			return usagef("usage: entries %s <id>", args[0])
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		var e api.Entry
		switch args[0] {
		case "get":
			e, err = entries.Get(ctx, id)
		case "delete":
			e, err = entries.Delete(ctx, id)
		default:
			e, err = entries.Restore(ctx, id)
		}
		if err != nil {
			return err
		}
		return writeJSON(out, e)
	default:
		return usagef("unknown entries command %q", args[0])
	}
}

// runAdmin logs in as admin for the duration of one command.
func runAdmin(ctx context.Context, admin *api.AdminAPI, args []string, out io.Writer) (err error) {
	if len(args) != 3 || (args[0] != "users" && args[0] != "tokens") {
		return usagef("usage: admin users|tokens <username> <password>")
	}
	if err := admin.Login(ctx, api.AdminLoginRequest{Username: args[1], Password: args[2]}); err != nil {
		return err
	}
	defer func() {
		if logoutErr := admin.Logout(context.WithoutCancel(ctx)); err == nil {
			err = logoutErr
		}
	}()

	if args[0] == "users" {
		users, err := admin.Users(ctx)
		if err != nil {
			return err
		}
		return writeJSON(out, users)
	}
	tokens, err := admin.RefreshTokens(ctx)
	if err != nil {
		return err
	}
	return writeJSON(out, tokens)
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, usagef("invalid id %q", s)
	}
	return id, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store"
	sqlitestore "github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store/sqlite"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
	"github.com/creativerezz/cofk-lunch-card-app/internal/db"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("addoperator", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("user", "", "Operator username")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	role := fs.String("role", "operator", "Role: admin, operator or viewer")
	dbPath := fs.String("db", "./data/cafeteria.db", "Path to the ledger database")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		fmt.Fprintln(stdout, "Usage: addoperator -user <username> [-password <password>] [-role <role>] [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: user")
	}
	switch *role {
	case "admin", "operator", "viewer":
	default:
		return fmt.Errorf("invalid role %q", *role)
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if path := os.Getenv("LUNCHCARD_DB_PATH"); path != "" && *dbPath == "./data/cafeteria.db" {
		*dbPath = path
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, db.Config{Path: *dbPath})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()

	operators := sqlitestore.NewOperatorStore(conn)

	if _, err := operators.GetByUsername(ctx, *username); err == nil {
		return fmt.Errorf("operator %s already exists", *username)
	} else if err != store.ErrOperatorNotFound {
		return fmt.Errorf("failed to check existing operator: %w", err)
	}

	op := types.Operator{Username: *username, Role: *role, IsActive: true}
	if err := op.SetPassword(password); err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	created, err := operators.Create(ctx, op)
	if err != nil {
		return fmt.Errorf("failed to create operator: %w", err)
	}

	fmt.Fprintf(stdout, "Operator %s (%s) created with ID %d\n", created.Username, created.Role, created.ID)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Fallback for non-terminal stdin (tests, pipes).
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

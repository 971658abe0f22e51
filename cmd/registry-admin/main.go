// ABOUTME: Operator CLI for the registry: manage clients, keys, and content
// ABOUTME: Talks to the SQLite database directly, like the server does

package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"golang.org/x/crypto/pbkdf2"

	"github.com/orbitcast/registry/internal/auth"
	"github.com/orbitcast/registry/internal/store"
)

// aesKeySize is the derived key length for passphrase keys (AES-256).
const aesKeySize = 32

// pbkdf2Iterations is deliberately fixed so that clients can derive the same
// key from the shared passphrase.
const pbkdf2Iterations = 4096

// adminConfig is the optional tool configuration, read from a small toml
// file so the database path doesn't have to be repeated on every call.
type adminConfig struct {
	DatabasePath string `toml:"database_path"`
}

// getConfig resolves the database path.
// Priority: REGISTRY_DB env var > REGISTRY_ADMIN_CONFIG toml file > ./registry.db
func getConfig() (adminConfig, error) {
	cfg := adminConfig{DatabasePath: "registry.db"}

	if path := os.Getenv("REGISTRY_ADMIN_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	if db := os.Getenv("REGISTRY_DB"); db != "" {
		cfg.DatabasePath = db
	}
	return cfg, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := getConfig()
	if err == nil {
		cmd := os.Args[1]
		args := os.Args[2:]

		switch cmd {
		case "clients":
			err = cmdClients(cfg, args)
		case "keys":
			err = cmdKeys(cfg, args)
		case "content":
			err = cmdContent(cfg, args)
		case "help", "-h", "--help":
			printUsage()
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
			printUsage()
			os.Exit(1)
		}
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Println("registry-admin - manage registry clients, keys, and content")
	fmt.Println()
	fmt.Println("Usage: registry-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  clients list                      List registered clients")
	fmt.Println("  clients add <name> [description]  Register a new client")
	fmt.Println("  clients activate <name>           Reactivate a client")
	fmt.Println("  clients deactivate <name>         Deactivate a client")
	fmt.Println("  keys list <client>                List a client's ciphers")
	fmt.Println("  keys add <client> <hex-key>       Register an AES key (16/24/32 bytes, hex)")
	fmt.Println("  keys add <client> -p <phrase>     Derive an AES-256 key from a passphrase")
	fmt.Println("  content list                      List catalogued files")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  REGISTRY_DB              Path to the registry database (default: registry.db)")
	fmt.Println("  REGISTRY_ADMIN_CONFIG    Path to a toml file with database_path")
}

func openStore(cfg adminConfig) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.DatabasePath)
}

func cmdClients(cfg adminConfig, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := context.Background()

	switch args[0] {
	case "list":
		clients, err := s.ListClients(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tACTIVE\tMAINTAINER\tCREATED\tDESCRIPTION")
		for _, c := range clients {
			fmt.Fprintf(w, "%s\t%v\t%s\t%s\t%s\n",
				c.Name, c.Active, c.Maintainer, c.Created.Format(time.DateOnly), c.Description)
		}
		return w.Flush()

	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: clients add <name> [description]")
		}
		c := &store.Client{Name: args[1], Active: true}
		if len(args) > 2 {
			c.Description = args[2]
		}
		if err := s.CreateClient(ctx, c); err != nil {
			return err
		}
		color.Green("Created client %s", c.Name)
		return nil

	case "activate", "deactivate":
		if len(args) < 2 {
			return fmt.Errorf("usage: clients %s <name>", args[0])
		}
		active := args[0] == "activate"
		if err := s.SetClientActive(ctx, args[1], active); err != nil {
			return err
		}
		color.Green("Client %s is now active=%v", args[1], active)
		return nil

	default:
		return fmt.Errorf("unknown clients subcommand: %s", args[0])
	}
}

func cmdKeys(cfg adminConfig, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: keys list|add ...")
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := context.Background()

	switch args[0] {
	case "list":
		if len(args) < 2 {
			return fmt.Errorf("usage: keys list <client>")
		}
		keys, err := s.ClientKeys(ctx, args[1])
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CIPHER\tKEY BYTES")
		for cipher, key := range keys {
			fmt.Fprintf(w, "%s\t%d\n", cipher, len(key))
		}
		return w.Flush()

	case "add":
		if len(args) < 3 {
			return fmt.Errorf("usage: keys add <client> <hex-key> | keys add <client> -p <passphrase>")
		}
		clientName := args[1]

		var key []byte
		if args[2] == "-p" {
			if len(args) < 4 {
				return fmt.Errorf("usage: keys add <client> -p <passphrase>")
			}
			// Salted with the client name so client and server derive the
			// same key from the shared passphrase.
			key = pbkdf2.Key([]byte(args[3]), []byte(clientName), pbkdf2Iterations, aesKeySize, sha256.New)
		} else {
			key, err = hex.DecodeString(args[2])
			if err != nil {
				return fmt.Errorf("key must be hex encoded: %w", err)
			}
			switch len(key) {
			case 16, 24, 32:
			default:
				return fmt.Errorf("key must be 16, 24, or 32 bytes, got %d", len(key))
			}
		}

		if err := s.UpsertClientKey(ctx, clientName, auth.CipherAESCBC, key); err != nil {
			return err
		}
		color.Green("Registered %s key for %s", auth.CipherAESCBC, clientName)
		return nil

	default:
		return fmt.Errorf("unknown keys subcommand: %s", args[0])
	}
}

func cmdContent(cfg adminConfig, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	if args[0] != "list" {
		return fmt.Errorf("unknown content subcommand: %s", args[0])
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	files, err := s.ListContent(context.Background(), store.ContentFilter{})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSERVE PATH\tSIZE\tALIVE\tMODIFIED")
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s\t%d\t%v\t%s\n",
			f.ID, f.ServePath, f.Size, f.Alive, f.Modified.Format(time.RFC3339))
	}
	return w.Flush()
}

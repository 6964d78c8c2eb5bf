// Command tn is a CLI client for the tenant notes API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ---- session store ----

type session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	TenantID     string    `json:"tenant_id"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "tenant-notes")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tenant-notes")
}

func sessionPath() string { return filepath.Join(cfgDir(), "session.json") }

func saveSession(s *session) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(sessionPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// loadSession returns the stored session. An expired access token is fine
// as long as a refresh token is present.
func loadSession() (*session, error) {
	b, err := os.ReadFile(sessionPath())
	if err != nil {
		return nil, errors.New("no session (login required)")
	}
	var s session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil, errors.New("no session (login required)")
	}
	return &s, nil
}

func clearSession() error {
	err := os.Remove(sessionPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// tokenExpiry reads exp from a JWT without verifying it.
func tokenExpiry(raw string) time.Time {
	var claims jwt.RegisteredClaims
	_, _, err := jwt.NewParser().ParseUnverified(raw, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return time.Now().Add(15 * time.Minute)
	}
	return claims.ExpiresAt.Time
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

// content resolves note text from -content or -file; -file wins.
func content(text, file string) (string, error) {
	if file == "" {
		return text, nil
	}
	b, err := readAll(file)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\n"), nil
}

func usageText() {
	fmt.Fprintf(os.Stderr, `tn CLI
Usage:
  tn -addr URL <cmd> [args]

Commands:
  version
  register   -u <username> -e <email> -p <password>   (saves session)
  login      -e <email> -p <password>                 (saves session)
  refresh
  logout
  me
  list       [-page N] [-limit N]
  get        -id <uuid>
  add        -title <t> (-content <c> | -file <path|->)
  edit       -id <uuid> -title <t> (-content <c> | -file <path|->)
  rm         -id <uuid>
  usage
  upgrade
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	flag.Usage = usageText
	flag.Parse()

	if flag.NArg() < 1 {
		usageText()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, *addr, flag.Arg(0), flag.Args()[1:]); err != nil {
		fail(err)
	}
}

// run executes one subcommand.
func run(ctx context.Context, addr, cmd string, args []string) error {
	switch cmd {
	case "version":
		fmt.Printf("tn %s (%s)\n", version, buildDate)
		return nil

	case "register":
		fs := flag.NewFlagSet("register", flag.ContinueOnError)
		u := fs.String("u", "", "username")
		e := fs.String("e", "", "email")
		p := fs.String("p", "", "password")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *u == "" || *e == "" || *p == "" {
			return errors.New("need -u, -e and -p")
		}
		c := newClient(addr, nil)
		c.onRotate = saveSession
		usr, err := c.register(ctx, *u, *e, *p)
		if err != nil {
			return err
		}
		printJSON(usr)
		return nil

	case "login":
		fs := flag.NewFlagSet("login", flag.ContinueOnError)
		e := fs.String("e", "", "email")
		p := fs.String("p", "", "password")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *e == "" || *p == "" {
			return errors.New("need -e and -p")
		}
		c := newClient(addr, nil)
		c.onRotate = saveSession
		if _, err := c.login(ctx, *e, *p); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	}

	sess, err := loadSession()
	if err != nil {
		return err
	}
	c := newClient(addr, sess)
	c.onRotate = saveSession

	switch cmd {
	case "refresh":
		if err := c.refresh(ctx); err != nil {
			return err
		}
		fmt.Println("ok")

	case "logout":
		err := c.logout(ctx)
		if cerr := clearSession(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		fmt.Println("ok")

	case "me":
		usr, t, err := c.me(ctx)
		if err != nil {
			return err
		}
		printJSON(map[string]any{"user": usr, "tenant": t})

	case "list":
		fs := flag.NewFlagSet("list", flag.ContinueOnError)
		page := fs.Int("page", 0, "page number (1-based)")
		limit := fs.Int("limit", 0, "page size")
		if err := fs.Parse(args); err != nil {
			return err
		}
		out, err := c.listNotes(ctx, *page, *limit)
		if err != nil {
			return err
		}
		type row struct{ ID, Title, UpdatedAt string }
		rows := make([]row, 0, len(out.Notes))
		for _, n := range out.Notes {
			rows = append(rows, row{ID: n.ID, Title: n.Title, UpdatedAt: n.UpdatedAt.Format(time.RFC3339)})
		}
		printJSON(map[string]any{
			"notes": rows,
			"page":  fmt.Sprintf("%d/%d", out.CurrentPage, out.TotalPages),
			"total": out.Total,
		})

	case "get":
		fs := flag.NewFlagSet("get", flag.ContinueOnError)
		id := fs.String("id", "", "note id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *id == "" {
			return errors.New("need -id")
		}
		n, err := c.getNote(ctx, *id)
		if err != nil {
			return err
		}
		printJSON(n)

	case "add", "edit":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		id := fs.String("id", "", "note id (edit only)")
		title := fs.String("title", "", "title")
		text := fs.String("content", "", "content")
		file := fs.String("file", "", "read content from file or - for stdin")
		if err := fs.Parse(args); err != nil {
			return err
		}
		body, err := content(*text, *file)
		if err != nil {
			return err
		}
		if cmd == "add" {
			n, u, err := c.createNote(ctx, *title, body)
			if err != nil {
				return err
			}
			printJSON(map[string]any{"note": n, "usage": u})
			return nil
		}
		if *id == "" {
			return errors.New("need -id")
		}
		n, err := c.updateNote(ctx, *id, *title, body)
		if err != nil {
			return err
		}
		printJSON(n)

	case "rm":
		fs := flag.NewFlagSet("rm", flag.ContinueOnError)
		id := fs.String("id", "", "note id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *id == "" {
			return errors.New("need -id")
		}
		u, err := c.deleteNote(ctx, *id)
		if err != nil {
			return err
		}
		printJSON(u)

	case "usage":
		u, err := c.tenantUsage(ctx, sess.TenantID)
		if err != nil {
			return err
		}
		printJSON(u)

	case "upgrade":
		msg, err := c.upgrade(ctx, sess.TenantID)
		if err != nil {
			return err
		}
		fmt.Println(msg)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

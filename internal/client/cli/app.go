package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/visionlock/internal/face"
	"github.com/dmitrijs2005/visionlock/internal/logging"
	"github.com/dmitrijs2005/visionlock/internal/server/config"
	"github.com/dmitrijs2005/visionlock/internal/server/models"
	"github.com/dmitrijs2005/visionlock/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/visionlock/internal/server/services"
)

type userStore interface {
	Register(ctx context.Context, identity, pin string, emb face.Embedding) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

type App struct {
	users   userStore
	migrate func(ctx context.Context) error
	closeDB func() error
	reader  *bufio.Reader
	out     io.Writer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	rm, err := repomanager.New(c.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	db, err := repomanager.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	logger := logging.NewJSON(os.Stderr, c.LogLevel)
	us := services.NewUserService(db, rm, c, logger)

	return &App{
		users:   us,
		migrate: func(ctx context.Context) error { return rm.RunMigrations(ctx, db) },
		closeDB: closer(db),
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}

func closer(db *sql.DB) func() error {
	return func() error { return db.Close() }
}

// Run executes args as a single command, or starts the prompt when args
// is empty. The result is a process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	defer func() {
		if a.closeDB != nil {
			_ = a.closeDB()
		}
	}()

	if len(args) == 0 {
		fmt.Fprintln(a.out, "VisionLock admin (type 'help' for commands)")
		runREPL(ctx, a, a.reader)
		return 0
	}

	if err := a.exec(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return 1
	}
	return 0
}

func (a *App) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "migrate":
		return a.Migrate(ctx)
	case "users":
		return a.Users(ctx)
	case "enroll":
		return a.Enroll(ctx, args)
	case "help":
		fmt.Fprintln(a.out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

const usage = `Commands:
  migrate                                   apply the database schema
  users                                     list enrolled identities
  enroll [-identity NAME] -embedding FILE   enroll a user; the PIN is prompted
  exit                                      leave the prompt`

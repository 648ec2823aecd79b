package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/visionlock/internal/common"
	"github.com/dmitrijs2005/visionlock/internal/face"
)

// readFile is a test seam for os.ReadFile.
var readFile = os.ReadFile

func (a *App) Migrate(ctx context.Context) error {
	if err := a.migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(a.out, "schema is up to date")
	return nil
}

func (a *App) Users(ctx context.Context) error {
	users, err := a.users.List(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tIDENTITY\tDIM\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", u.Seq, u.Identity, len(u.Embedding), u.CreatedAt.Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d user(s)\n", len(users))
	return nil
}

func (a *App) Enroll(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("enroll", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	identity := fs.String("identity", "", "identity to enroll")
	embPath := fs.String("embedding", "", "JSON file with the face embedding")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("enroll: %w", err)
	}
	if *embPath == "" {
		return errors.New("enroll: -embedding is required")
	}

	emb, err := loadEmbedding(*embPath)
	if err != nil {
		return err
	}

	if *identity == "" {
		*identity, err = GetSimpleText(a.reader, "Identity", a.out)
		if err != nil {
			return err
		}
	}

	pin, err := GetPIN(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pin)

	u, err := a.users.Register(ctx, *identity, string(pin), emb)
	if err != nil {
		return fmt.Errorf("enroll %s: %w", *identity, err)
	}
	fmt.Fprintf(a.out, "enrolled %s (seq %d)\n", u.Identity, u.Seq)
	return nil
}

// loadEmbedding accepts either a bare JSON array or {"embedding": [...]}.
func loadEmbedding(path string) (face.Embedding, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("read embedding: %w", err)
	}

	var emb face.Embedding
	if err := json.Unmarshal(data, &emb); err != nil {
		var wrapped struct {
			Embedding face.Embedding `json:"embedding"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("parse embedding: %w", err)
		}
		emb = wrapped.Embedding
	}

	if err := emb.Validate(); err != nil {
		return nil, err
	}
	return emb, nil
}

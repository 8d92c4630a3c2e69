package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/desertthunder/reel/internal/formatter"
	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/repositories"
	"github.com/desertthunder/reel/internal/shared"
)

// feedFile is the import format. TOML files use [[item]] tables; JSON and YAML
// files hold an "items" list.
type feedFile struct {
	Items []models.FeedItem `json:"items" toml:"item" yaml:"items"`
}

// readFeedFile parses path according to its extension.
func readFeedFile(path string) ([]models.FeedItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed file: %w", err)
	}

	var file feedFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &file)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".toml":
		err = toml.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("%w: unsupported feed file %q", shared.ErrInvalidArgument, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return file.Items, nil
}

// FeedImport appends the items of a feed file to the local store.
func (r *Runner) FeedImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}

	items, err := readFeedFile(path)
	if err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}
	repo := repositories.NewFeedRepository(db, r.config.Scroll.PageSize)

	inserted, err := repo.Import(items)
	if err != nil {
		return err
	}
	total, err := repo.Count()
	if err != nil {
		return err
	}

	r.logger.Info("imported feed items", "path", path, "inserted", inserted, "skipped", len(items)-inserted)
	r.writePlain("✓ Imported %d of %d items (%d in feed)\n", inserted, len(items), total)
	return nil
}

// FeedList prints the items of the configured source. The local store lists
// everything; remote sources list their first page.
func (r *Runner) FeedList(ctx context.Context, cmd *cli.Command) error {
	provider, err := r.feedProvider()
	if err != nil {
		return err
	}

	var items []models.FeedItem
	if repo, ok := provider.(*repositories.FeedRepository); ok {
		items, err = repo.List()
	} else {
		items, err = provider.GetFeedItems(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to list feed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(items, cmd.Bool("pretty"))
	}
	return r.writeBytes(formatter.ItemsToText(items))
}

// FeedViews prints view counts recorded by earlier sessions.
func (r *Runner) FeedViews(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	views, err := repositories.NewViewRepository(db).List()
	if err != nil {
		return err
	}

	var data []byte
	if cmd.Bool("csv") {
		if data, err = formatter.ViewsToCSV(views); err != nil {
			return err
		}
	} else {
		var b strings.Builder
		fmt.Fprintf(&b, "Views: %d items\n\n", len(views))
		for _, v := range views {
			fmt.Fprintf(&b, "%-24s %5d  %s\n", v.ItemID, v.Views, v.LastViewedAt.Local().Format("2006-01-02 15:04:05"))
		}
		data = []byte(b.String())
	}

	if output := cmd.String("output"); output != "" {
		if err := os.WriteFile(output, data, 0644); err != nil {
			return fmt.Errorf("failed to write views: %w", err)
		}
		r.logger.Info("views written", "path", output, "items", len(views))
		return nil
	}
	return r.writeBytes(data)
}

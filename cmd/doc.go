package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"cheesecave/internal/config"
	"cheesecave/internal/document"
	repodb "cheesecave/internal/repository/db"
	"cheesecave/internal/state"

	"github.com/spf13/cobra"
)

// docTarget names one of the two replicated documents.
type docTarget struct {
	path     string
	defaults map[string]any
}

func (o *rootOptions) docTarget(name string) (docTarget, error) {
	switch name {
	case "config":
		return docTarget{path: o.settings.Store.ConfigKey, defaults: state.ConfigDefaults()}, nil
	case "state":
		return docTarget{path: o.settings.Store.StateKey, defaults: state.StateDefaults()}, nil
	}
	return docTarget{}, fmt.Errorf("unknown document %q: must be config or state", name)
}

func newDocCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Read or edit the replicated documents",
		Long: `Read or edit the configuration and device state documents through the
configured store. A running appliance picks edits up through its watch.`,
	}
	cmd.AddCommand(newDocGetCommand(opts))
	cmd.AddCommand(newDocPutCommand(opts))
	return cmd
}

func newDocGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "get <config|state>",
		Short:     "Print a document, completed with defaults",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"config", "state"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDocument(cmd.Context(), opts, args[0], func(doc *document.Document, _ docTarget) error {
				out, err := json.MarshalIndent(doc.Snapshot(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			})
		},
	}
}

func newDocPutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <config|state> <json>",
		Short: "Merge JSON keys into a document and write it",
		Long: `Merge the keys of a JSON object into a document and write it at once.

Example:
  cheesecave doc put config '{"sensors":2,"humidifier_connected":true}'
  cheesecave doc put state '{"desired_humidity":85}'`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"config", "state"},
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := []byte(args[1])
			var in map[string]any
			if err := json.Unmarshal(raw, &in); err != nil || in == nil {
				return fmt.Errorf("%w: want a JSON object", document.ErrInvalidDocument)
			}
			return withDocument(cmd.Context(), opts, args[0], func(doc *document.Document, t docTarget) error {
				if err := document.Check(raw, t.defaults); err != nil {
					return err
				}
				doc.Update(func(f document.Fields) {
					for k, v := range in {
						f[k] = v
					}
				})
				if err := doc.Flush(cmd.Context()); err != nil {
					return err
				}
				opts.log.Infow("document_written", "path", doc.Path(), "keys", len(in))
				return nil
			})
		},
	}
}

// withDocument loads the named document from the configured store for the
// duration of fn.
func withDocument(ctx context.Context, opts *rootOptions, name string, fn func(*document.Document, docTarget) error) error {
	target, err := opts.docTarget(name)
	if err != nil {
		return err
	}

	var db *sql.DB
	if opts.settings.Store.Backend == config.BackendSQLite {
		if db, err = repodb.InitDB(opts.settings.DB.Path); err != nil {
			return fmt.Errorf("init sqlite: %w", err)
		}
		defer db.Close()
	}
	st, closeStore, err := openStore(ctx, opts.settings.Store, db)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	doc, err := document.Load(ctx, st, target.path, target.defaults,
		document.WithLogger(opts.log),
		document.WithTimeout(opts.settings.Store.Timeout))
	if err != nil {
		return err
	}
	defer doc.Close()
	return fn(doc, target)
}

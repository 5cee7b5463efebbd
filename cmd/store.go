package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"
	"github.com/trusted-programming/tree-grepper/internal/adapter/outbound/archive"
	"github.com/trusted-programming/tree-grepper/internal/application/command"
	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

func newStoreCmd(state *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect, export and import the artifact store",
		Long: `Read, write, export and import the blob store configured under store.* in
the configuration. Keys are relative to store.namespace.`,
	}
	cmd.AddCommand(
		newStoreGetCmd(state),
		newStorePutCmd(state),
		newStoreDeleteCmd(state),
		newStoreKeysCmd(state),
		newStoreExportCmd(state),
		newStoreImportCmd(state),
	)
	return cmd
}

// withStore opens the configured store for the duration of fn.
func (c *cli) withStore(ctx context.Context, fn func(outbound.BlobStore) error) error {
	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slogger.Warn(ctx, "closing blob store failed", slogger.Fields{"error": err.Error()})
		}
	}()
	return fn(store)
}

func newStoreGetCmd(state *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print a stored value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return state.withStore(cmd.Context(), func(store outbound.BlobStore) error {
				value, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), value)
				return err
			})
		},
	}
}

func newStorePutCmd(state *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "put KEY FILE",
		Short: "Store the content of FILE (- for standard input) under KEY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				content []byte
				err     error
			)
			if args[1] == "-" {
				content, err = io.ReadAll(cmd.InOrStdin())
			} else {
				content, err = os.ReadFile(args[1])
			}
			if err != nil {
				return domain.NewReadError(args[1], err)
			}
			return state.withStore(cmd.Context(), func(store outbound.BlobStore) error {
				return store.Put(cmd.Context(), args[0], string(content))
			})
		},
	}
}

func newStoreDeleteCmd(state *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY",
		Short: "Remove a stored value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return state.withStore(cmd.Context(), func(store outbound.BlobStore) error {
				return store.Delete(cmd.Context(), args[0])
			})
		},
	}
}

func newStoreKeysCmd(state *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "keys [PREFIX]",
		Short: "List stored keys, optionally below PREFIX",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			return state.withStore(cmd.Context(), func(store outbound.BlobStore) error {
				keys, err := store.Keys(cmd.Context(), prefix)
				if err != nil {
					return err
				}
				for _, k := range keys {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), k); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newStoreExportCmd(state *cli) *cobra.Command {
	var (
		export command.ExportCommand
		mtime  string
	)

	cmd := &cobra.Command{
		Use:   "export --out FILE.tar.gz [--prefix PREFIX]",
		Short: "Write every value below a prefix to a gzip compressed tar archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if mtime != "" {
				modTime, err := time.Parse(time.RFC3339, mtime)
				if err != nil {
					return fmt.Errorf("%w: %w: --mtime %q is not RFC 3339", command.ErrInvalidCommand, domain.ErrInvalidInput, mtime)
				}
				export.ModTime = modTime
			}
			if err := export.Validate(); err != nil {
				return err
			}
			return state.withStore(cmd.Context(), func(store outbound.BlobStore) error {
				return exportArchive(cmd, store, export)
			})
		},
	}

	cmd.Flags().StringVarP(&export.Out, "out", "o", "", "Archive file to create")
	cmd.Flags().StringVar(&export.Prefix, "prefix", "", "Only export keys below this prefix")
	cmd.Flags().IntVar(&export.Level, "level", gzip.DefaultCompression,
		fmt.Sprintf("Gzip compression level (%d to %d)", command.MinCompressionLevel, command.MaxCompressionLevel))
	cmd.Flags().StringVar(&mtime, "mtime", "", "Fixed RFC 3339 modification time for every entry")
	return cmd
}

func newStoreImportCmd(state *cli) *cobra.Command {
	var imp command.ImportCommand

	cmd := &cobra.Command{
		Use:   "import FILE.tar.gz [--prefix PREFIX]",
		Short: "Store every entry of an exported archive under its name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imp.Archive = args[0]
			if err := imp.Validate(); err != nil {
				return err
			}
			return state.withStore(cmd.Context(), func(store outbound.BlobStore) error {
				return importArchive(cmd, store, imp)
			})
		},
	}

	cmd.Flags().StringVar(&imp.Prefix, "prefix", "", "Only import entries below this prefix")
	return cmd
}

func exportArchive(cmd *cobra.Command, store outbound.BlobStore, export command.ExportCommand) (err error) {
	f, err := os.Create(export.Out)
	if err != nil {
		return domain.NewWriteError(export.Out, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = domain.NewWriteError(export.Out, closeErr)
		}
		if err != nil {
			_ = os.Remove(export.Out)
		}
	}()

	opts := []archive.ExporterOption{archive.WithCompressionLevel(export.Level)}
	if !export.ModTime.IsZero() {
		modTime := export.ModTime
		opts = append(opts, archive.WithClock(func() time.Time { return modTime }))
	}
	report, err := archive.NewExporter(store, opts...).Export(cmd.Context(), export.Prefix, f)
	if err != nil {
		return err
	}
	cmd.PrintErrf("exported %d entries (%d bytes) to %s\n", report.Entries, report.Bytes, export.Out)
	return nil
}

func importArchive(cmd *cobra.Command, store outbound.BlobStore, imp command.ImportCommand) error {
	f, err := os.Open(imp.Archive)
	if err != nil {
		return domain.NewReadError(imp.Archive, err)
	}
	defer f.Close()

	entries, err := archive.ReadArchive(f)
	if err != nil {
		return domain.NewReadError(imp.Archive, err)
	}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		if strings.HasPrefix(key, imp.Prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := store.Put(cmd.Context(), key, entries[key]); err != nil {
			return err
		}
	}
	cmd.PrintErrf("imported %d entries from %s\n", len(keys), imp.Archive)
	return nil
}

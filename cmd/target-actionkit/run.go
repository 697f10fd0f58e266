package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hotgluexyz/target-actionkit/actionkit"
	"github.com/hotgluexyz/target-actionkit/db"
	"github.com/hotgluexyz/target-actionkit/internal/logutil"
	"github.com/hotgluexyz/target-actionkit/internal/retryutil"
	"github.com/hotgluexyz/target-actionkit/internal/stream"
	"github.com/hotgluexyz/target-actionkit/sink"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const contactsStream = "Contacts"

func newRunCmd() *cobra.Command {
	var inputPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Read ingestion messages and sync contact records into ActionKit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}

			cfg := actionkitConfigFromViper()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("actionkit config: %w", err)
			}

			input, closeInput, err := openInput(inputPath)
			if err != nil {
				return err
			}
			defer closeInput()

			gdb, err := db.Open(dbConfigFromViper())
			if err != nil {
				return err
			}
			store, err := db.NewStore(gdb)
			if err != nil {
				return err
			}

			httpClient := &http.Client{Timeout: viper.GetDuration("actionkit.request_timeout")}
			client, err := actionkit.NewClient(httpClient, cfg, logger)
			if err != nil {
				return err
			}
			contacts, err := sink.New(client, logger)
			if err != nil {
				return err
			}

			runner := &runner{
				logger:      logger,
				store:       store,
				contacts:    contacts,
				maxAttempts: viper.GetInt("retry.max_attempts"),
				out:         cmd.OutOrStdout(),
			}
			return runner.run(cmd.Context(), stream.NewReader(input))
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "-", "Message file to read, or - for stdin")
	return cmd
}

type runner struct {
	logger      *slog.Logger
	store       *db.Store
	contacts    *sink.Sink
	maxAttempts int
	out         io.Writer
}

func (r *runner) run(ctx context.Context, reader *stream.Reader) error {
	runID := uuid.NewString()
	startedAt := time.Now()
	if err := r.store.StartRun(ctx, runID, contactsStream, startedAt); err != nil {
		return err
	}
	r.logger.Info("sync_run_started", "run_id", runID)

	var synced, failed int
	var runErr error

	for {
		msg, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			runErr = err
			break
		}

		switch msg.Type {
		case stream.TypeRecord:
			if msg.Stream != contactsStream {
				r.logger.Warn("skipping_record", "stream", msg.Stream)
				continue
			}
			if err := r.syncRecord(ctx, msg.Record); err != nil {
				failed++
				if actionkit.IsAuthentication(err) {
					// The whole run shares one credential; there is no
					// point feeding more records into it.
					runErr = err
				} else {
					r.logger.Error("record_failed", "error", err.Error())
				}
			} else {
				synced++
			}
		case stream.TypeSchema:
			r.logger.Info("schema_registered", "stream", msg.Stream)
		case stream.TypeState:
			if err := r.checkpoint(ctx, msg.Value); err != nil {
				runErr = err
			}
		}
		if runErr != nil {
			break
		}
	}

	if err := r.store.FinishRun(ctx, runID, synced, failed, time.Now()); err != nil && runErr == nil {
		runErr = err
	}
	r.logger.Info("sync_run_finished", "run_id", runID, "synced", synced, "failed", failed)
	return runErr
}

func (r *runner) syncRecord(ctx context.Context, raw json.RawMessage) error {
	var record sink.ContactRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return fmt.Errorf("decode contact record: %w", err)
	}
	var result sink.UpsertResult
	err := retryutil.Do(ctx, r.logger, "upsert_record", r.maxAttempts, func(ctx context.Context) error {
		var upsertErr error
		result, upsertErr = r.contacts.UpsertRecord(ctx, record)
		return upsertErr
	})
	if err != nil {
		return err
	}
	r.logger.Info("record_synced",
		"email", record.Email,
		"remote_id", result.RemoteID,
		"is_updated", result.IsUpdated,
	)
	return nil
}

// checkpoint persists the state blob and echoes it downstream. Records
// are processed synchronously, so by the time a state message is read,
// everything before it has converged.
func (r *runner) checkpoint(ctx context.Context, value json.RawMessage) error {
	if err := r.store.SaveState(ctx, contactsStream, value, time.Now()); err != nil {
		return err
	}
	_, err := fmt.Fprintln(r.out, string(value))
	return err
}

func openInput(path string) (io.Reader, func(), error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func actionkitConfigFromViper() actionkit.Config {
	return actionkit.Config{
		Username:                 viper.GetString("actionkit.username"),
		Password:                 viper.GetString("actionkit.password"),
		Hostname:                 viper.GetString("actionkit.hostname"),
		FullURL:                  viper.GetString("actionkit.full_url"),
		SignupPageShortName:      viper.GetString("actionkit.signup_page_short_name"),
		UnsubscribePageShortName: viper.GetString("actionkit.unsubscribe_page_short_name"),
	}
}

func dbConfigFromViper() db.Config {
	cfg := db.DefaultConfig()
	cfg.Driver = viper.GetString("db.driver")
	cfg.DSN = viper.GetString("db.dsn")
	cfg.Pool.MaxOpenConns = viper.GetInt("db.pool.max_open_conns")
	cfg.Pool.MaxIdleConns = viper.GetInt("db.pool.max_idle_conns")
	cfg.Pool.ConnMaxLifetime = viper.GetDuration("db.pool.conn_max_lifetime")
	cfg.SQLite.BusyTimeoutMs = viper.GetInt("db.sqlite.busy_timeout_ms")
	cfg.SQLite.WAL = viper.GetBool("db.sqlite.wal")
	cfg.SQLite.ForeignKeys = viper.GetBool("db.sqlite.foreign_keys")
	cfg.AutoMigrate = viper.GetBool("db.automigrate")
	return cfg
}

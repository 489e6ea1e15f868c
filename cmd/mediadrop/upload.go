package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mediadrop/internal/client"
	"mediadrop/internal/core"
	"mediadrop/internal/uploader"
)

func newUploadCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file-or-dir>...",
		Short: "Upload audio and video files",
		Long: `Upload audio and video files. Directories are searched recursively for
media files. Interrupted large uploads resume from where they stopped when
the same file is uploaded again.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.runUpload(ctx, args)
		},
	}

	flags := cmd.Flags()
	flags.IntP("parallel", "p", 1, "files uploaded at the same time")
	flags.String("storage", "server", "where small files go: server or minio")
	flags.String("resume-store", "file", "where resumable sessions are remembered: file or redis")
	flags.String("resume-file", "", "resume store path (default in the user cache dir)")
	flags.String("redis-url", "redis://localhost:6379/0", "redis URL for --resume-store=redis")
	flags.Duration("resume-ttl", 0, "how long redis remembers sessions (default 24h)")
	flags.String("threshold", "", "size above which uploads are resumable (default 100MiB)")
	flags.String("max-size", "", "largest accepted file (default 5GiB)")
	flags.String("chunk-size", "", "resumable chunk size (default 5MiB)")
	flags.String("cache-control", "", "Cache-Control max-age for stored objects, in seconds")
	flags.Bool("video", true, "accept video files")
	flags.Bool("audio", true, "accept audio files")
	flags.Bool("compensate", true, "remove stored bytes when the record cannot be written")
	flags.Bool("keep-session", false, "keep the server session on cancel so a later run can resume")

	return cmd
}

func (c *cli) runUpload(ctx context.Context, args []string) error {
	s := c.settings

	paths, err := core.ParseArgs(args)
	if err != nil {
		return err
	}
	files, err := core.CollectMediaFiles(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no audio or video files found")
	}

	u, closeFn, err := c.newUploader(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	sessions := uploader.TokenSessionProvider{Token: s.Token}
	notifier := uploader.NewTerminalNotifier(os.Stderr)
	board := newProgressBoard(os.Stdout, len(files) == 1 && s.Parallel == 1)

	var failed atomic.Int32
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Parallel)

	for _, f := range files {
		g.Go(func() error {
			if err := uploadOne(ctx, u, sessions, notifier, board, f); err != nil {
				failed.Add(1)
				slog.Debug("upload failed", "file", f.Path, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d uploads failed", n, len(files))
	}
	return nil
}

func uploadOne(ctx context.Context, u *uploader.Uploader, sessions uploader.SessionProvider, notifier uploader.Notifier, board *progressBoard, f core.MediaFile) error {
	tracker := uploader.NewTracker(u.Policy().SuccessDisplay, func(s uploader.Snapshot) {
		board.update(s)
	}, nil)
	ctl := uploader.NewController(u, sessions, notifier, tracker)

	// Validate before opening so rejected files cost nothing.
	if err := core.Validate(f, u.Policy()); err != nil {
		_, err := ctl.Submit(ctx, f, nil)
		return err
	}

	content, err := os.Open(f.Path)
	if err != nil {
		return err
	}
	defer content.Close()

	res, err := ctl.Submit(ctx, f, content)
	if err != nil {
		return err
	}
	board.done(f.Name, res)
	return nil
}

// newUploader wires the collaborators selected by the settings.
func (c *cli) newUploader(ctx context.Context) (*uploader.Uploader, func(), error) {
	s := c.settings
	cfg := client.Config{BaseURL: s.Server}
	tusClient := client.NewTusClient(cfg)

	var objects uploader.ObjectStore = client.NewStorageClient(cfg)
	if s.Storage == "minio" {
		m, err := client.NewMinioStore(client.MinioConfig{
			Endpoint:  s.MinioEndpoint,
			AccessKey: s.MinioAccessKey,
			SecretKey: s.MinioSecretKey,
			UseSSL:    s.MinioUseSSL,
		})
		if err != nil {
			return nil, nil, err
		}
		objects = m
	}

	closeFn := func() {}
	var fingerprints uploader.FingerprintStore
	switch s.ResumeStore {
	case "redis":
		opts, err := redis.ParseURL(s.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		fingerprints = uploader.NewRedisFingerprintStore(rdb, s.ResumeTTL)
		closeFn = func() { rdb.Close() }
	default:
		fingerprints = uploader.NewFileFingerprintStore(s.ResumeFile)
	}

	u := uploader.New(uploader.Options{
		Policy:       s.Policy,
		Objects:      objects,
		Records:      client.NewRecordsClient(cfg),
		Transport:    tusClient,
		Fingerprints: fingerprints,
		Endpoint:     tusClient.Endpoint(),
	})
	return u, closeFn, nil
}

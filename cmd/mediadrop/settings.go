package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"mediadrop/internal/core"
)

const (
	defaultServer = "http://localhost:8080"
	defaultBucket = "media-files"
)

// settings is the resolved CLI configuration.
type settings struct {
	Server  string
	Token   string
	Bucket  string
	Verbose bool

	Parallel int

	// Storage is "server" to upload through the API or "minio" to write
	// small files straight into the bucket.
	Storage        string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool

	// ResumeStore is "file" or "redis".
	ResumeStore string
	ResumeFile  string
	RedisURL    string
	ResumeTTL   time.Duration

	Policy core.Policy
}

func loadSettings(v *viper.Viper) (settings, error) {
	s := settings{
		Server:         v.GetString("server"),
		Token:          v.GetString("token"),
		Bucket:         v.GetString("bucket"),
		Verbose:        v.GetBool("verbose"),
		Parallel:       v.GetInt("parallel"),
		Storage:        v.GetString("storage"),
		MinioEndpoint:  v.GetString("minio.endpoint"),
		MinioAccessKey: v.GetString("minio.access_key"),
		MinioSecretKey: v.GetString("minio.secret_key"),
		MinioUseSSL:    v.GetBool("minio.use_ssl"),
		ResumeStore:    v.GetString("resume-store"),
		ResumeFile:     v.GetString("resume-file"),
		RedisURL:       v.GetString("redis-url"),
		ResumeTTL:      v.GetDuration("resume-ttl"),
	}
	if s.Server == "" {
		s.Server = defaultServer
	}
	if s.Bucket == "" {
		s.Bucket = defaultBucket
	}
	if s.Parallel < 1 {
		s.Parallel = 1
	}
	if s.Storage == "" {
		s.Storage = "server"
	}
	if s.ResumeStore == "" {
		s.ResumeStore = "file"
	}
	if s.ResumeFile == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			dir = os.TempDir()
		}
		s.ResumeFile = filepath.Join(dir, "mediadrop", "resume.json")
	}
	if s.ResumeTTL <= 0 {
		s.ResumeTTL = 24 * time.Hour
	}

	switch s.Storage {
	case "server", "minio":
	default:
		return s, fmt.Errorf("unknown storage %q (want server or minio)", s.Storage)
	}
	switch s.ResumeStore {
	case "file", "redis":
	default:
		return s, fmt.Errorf("unknown resume store %q (want file or redis)", s.ResumeStore)
	}

	p, err := loadPolicy(v, s.Bucket)
	if err != nil {
		return s, err
	}
	s.Policy = p
	return s, nil
}

// loadPolicy overrides the default policy with whatever is configured. Sizes
// accept human units such as "100MiB" or "5GB".
func loadPolicy(v *viper.Viper, bucket string) (core.Policy, error) {
	p := core.DefaultPolicy()
	p.Bucket = bucket

	sizes := []struct {
		key string
		dst *int64
	}{
		{"threshold", &p.SizeThresholdBytes},
		{"max-size", &p.MaxFileBytes},
		{"chunk-size", &p.ChunkSizeBytes},
	}
	for _, sz := range sizes {
		raw := v.GetString(sz.key)
		if raw == "" {
			continue
		}
		n, err := humanize.ParseBytes(raw)
		if err != nil {
			return p, fmt.Errorf("invalid %s %q: %w", sz.key, raw, err)
		}
		if n == 0 {
			return p, fmt.Errorf("%s must be positive", sz.key)
		}
		*sz.dst = int64(n)
	}

	if v.IsSet("video") {
		p.AcceptVideo = v.GetBool("video")
	}
	if v.IsSet("audio") {
		p.AcceptAudio = v.GetBool("audio")
	}
	if v.IsSet("compensate") {
		p.CompensateOrphans = v.GetBool("compensate")
	}
	if v.IsSet("keep-session") {
		p.TerminateOnCancel = !v.GetBool("keep-session")
	}
	if cc := v.GetString("cache-control"); cc != "" {
		p.CacheControl = cc
	}
	return p, nil
}

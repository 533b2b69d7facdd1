package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-freq/internal/duckdb"
	"github.com/inodb/vibe-freq/internal/genome"
	"github.com/inodb/vibe-freq/internal/load"
	"github.com/inodb/vibe-freq/internal/variant"
)

// settings is the resolved configuration of one command run.
type settings struct {
	Database        string
	Build           genome.Build
	MaxWindow       int64
	GQThreshold     float64
	IgnoreGQIfUnset bool
	QualGQ          bool
	KeepChrPrefix   bool
	BatchSize       int
	HardThreshold   float64
	SoftThreshold   float64
	CheckProfile    bool
	Verbose         bool
}

func loadSettings() (settings, error) {
	build, err := genome.ParseBuild(viper.GetString("genome_build"))
	if err != nil {
		return settings{}, &usageError{err}
	}
	s := settings{
		Database:        viper.GetString("database"),
		Build:           build,
		MaxWindow:       viper.GetInt64("max_window"),
		GQThreshold:     viper.GetFloat64("gq_threshold"),
		IgnoreGQIfUnset: viper.GetBool("ignore_gq_if_unset"),
		QualGQ:          viper.GetBool("qual_gq"),
		KeepChrPrefix:   viper.GetBool("keep_chr_prefix"),
		BatchSize:       viper.GetInt("batch_size"),
		HardThreshold:   viper.GetFloat64("profile.hard_threshold"),
		SoftThreshold:   viper.GetFloat64("profile.soft_threshold"),
		CheckProfile:    viper.GetBool("profile.check"),
		Verbose:         viper.GetBool("verbose"),
	}
	if s.Database == "" {
		return s, &usageError{fmt.Errorf("no database configured, use --database")}
	}
	return s, nil
}

func (s settings) variantOptions() variant.Options {
	return variant.Options{
		Normalize: variant.NormalizeOptions{KeepChrPrefix: s.KeepChrPrefix},
		Classify: variant.ClassifyOptions{
			GQThreshold:     s.GQThreshold,
			IgnoreGQIfUnset: s.IgnoreGQIfUnset,
			QualAsGQ:        s.QualGQ,
			Build:           s.Build,
		},
	}
}

func (s settings) loadOptions() load.Options {
	return load.Options{
		Variant:       s.variantOptions(),
		MaxWindow:     s.MaxWindow,
		BatchSize:     s.BatchSize,
		CheckProfiles: s.CheckProfile,
		HardThreshold: s.HardThreshold,
	}
}

// session bundles what a data command needs: settings, logger and the open
// database.
type session struct {
	settings
	logger *zap.Logger
	store  *duckdb.Store
}

func openSession(stderr io.Writer) (*session, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	logger := newLogger(s.Verbose, stderr)

	store, err := duckdb.Open(s.Database)
	if err != nil {
		return nil, err
	}
	logger.Debug("database opened", zap.String("path", s.Database))
	return &session{settings: s, logger: logger, store: store}, nil
}

func (s *session) Close() error {
	s.logger.Sync()
	return s.store.Close()
}

// withSession opens a session, runs fn and closes the session.
func withSession(stderr io.Writer, fn func(ctx context.Context, s *session) error) error {
	sess, err := openSession(stderr)
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(context.Background(), sess)
}

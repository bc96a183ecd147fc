package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"identity-service/internal/config"
	"identity-service/internal/repository/sqlstore"
	"identity-service/internal/storage"
)

// openStore connects to the configured database and applies pending migrations.
func openStore(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (*sql.DB, *sqlstore.Store, error) {
	dialect, err := sqlstore.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	var db *sql.DB
	switch dialect {
	case sqlstore.DialectPostgres:
		db, err = sqlstore.OpenPostgres(ctx, cfg.Database.DSN, sqlstore.PostgresOptions{
			MaxOpenConns: cfg.Database.MaxOpenConns,
		})
	default:
		db, err = sqlstore.OpenSQLite(ctx, cfg.Database.Path)
	}
	if err != nil {
		return nil, nil, oops.Code("DB_CONNECT_FAILED").
			With("driver", string(dialect)).
			Wrap(err)
	}

	if err := sqlstore.Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, nil, oops.Code("MIGRATION_FAILED").
			With("driver", string(dialect)).
			Wrap(err)
	}
	logger.Infof("database ready (driver %s)", dialect)

	return db, sqlstore.New(db, dialect), nil
}

// buildStorage returns the avatar store. Without a bucket uploads are disabled.
func buildStorage(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (storage.AvatarStore, error) {
	if cfg.Storage.Bucket == "" {
		logger.Info("avatar storage disabled: no bucket configured")
		return storage.Disabled{}, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Store(client, storage.S3Options{
		Bucket:        cfg.Storage.Bucket,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	})
}

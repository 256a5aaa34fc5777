package store

import (
	"context"

	"github.com/juju/errors"

	"taskbridge/internal/config"
	"taskbridge/internal/infra/awsutil"
	"taskbridge/internal/infra/store/dynamodb"
	"taskbridge/internal/infra/store/memory"
	"taskbridge/internal/infra/store/postgres"
	"taskbridge/internal/infra/store/s3"
	"taskbridge/internal/infra/store/sqlite"
)

// Open constructs the backend named by cfg.Driver. AWS settings apply to the
// dynamodb and s3 drivers only.
func Open(ctx context.Context, cfg config.Store, aws config.AWS) (Store, error) {
	awsCfg := awsutil.Config{Region: aws.Region, Endpoint: aws.Endpoint}
	switch cfg.Driver {
	case DriverMemory:
		return memory.New(), nil
	case DriverSQLite:
		s, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, errors.Annotate(err, "open sqlite store")
		}
		return s, nil
	case DriverPostgres:
		s, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, errors.Annotate(err, "open postgres store")
		}
		return s, nil
	case DriverDynamoDB:
		s, err := dynamodb.New(ctx, dynamodb.Config{Table: cfg.Table, AWS: awsCfg})
		if err != nil {
			return nil, errors.Annotate(err, "open dynamodb store")
		}
		return s, nil
	case DriverS3:
		s, err := s3.New(ctx, s3.Config{Bucket: cfg.S3Bucket, Prefix: cfg.S3Prefix, PathStyle: aws.PathStyle, AWS: awsCfg})
		if err != nil {
			return nil, errors.Annotate(err, "open s3 store")
		}
		return s, nil
	default:
		return nil, errors.NotValidf("store driver %q", cfg.Driver)
	}
}

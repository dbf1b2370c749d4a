package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	models "github.com/dipdup-io/spaceroom-deployer/internal/storage"
	"github.com/dipdup-io/spaceroom-deployer/internal/storage/sqldb/migrations"
	"github.com/dipdup-net/go-lib/config"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/migrate"
)

// ErrUnsupportedKind -
var ErrUnsupportedKind = errors.New("unsupported database kind")

// Storage -
type Storage struct {
	db   *bun.DB
	kind string

	Deployments models.IDeployment
}

// Create - opens the database described by config, creates schema and applies migrations
func Create(ctx context.Context, cfg config.Database) (Storage, error) {
	db, err := open(cfg)
	if err != nil {
		return Storage{}, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return Storage{}, errors.Wrap(err, "ping database")
	}

	if err := initDatabase(ctx, db, cfg.Kind); err != nil {
		_ = db.Close()
		return Storage{}, err
	}

	return Storage{
		db:          db,
		kind:        cfg.Kind,
		Deployments: NewDeployment(db),
	}, nil
}

// Close -
func (s Storage) Close() error {
	return s.db.Close()
}

func open(cfg config.Database) (*bun.DB, error) {
	switch cfg.Kind {
	case config.DBKindSqlite:
		path := cfg.Path
		if path == "" {
			path = "deployments.db"
		}
		sqlDB, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return bun.NewDB(sqlDB, sqlitedialect.New()), nil

	case config.DBKindPostgres:
		sqlDB, err := sql.Open("postgres", postgresDSN(cfg))
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqlDB, pgdialect.New()), nil

	default:
		return nil, errors.Wrap(ErrUnsupportedKind, cfg.Kind)
	}
}

func postgresDSN(cfg config.Database) string {
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   cfg.Database,
	}
	q := dsn.Query()
	q.Set("sslmode", "disable")
	dsn.RawQuery = q.Encode()
	return dsn.String()
}

func initDatabase(ctx context.Context, db *bun.DB, kind string) error {
	log.Info().Str("kind", kind).Msg("creating tables...")
	for _, model := range models.Models {
		if _, err := db.NewCreateTable().IfNotExists().Model(model).Exec(ctx); err != nil {
			return errors.Wrap(err, "create table")
		}
	}

	if kind == config.DBKindPostgres {
		if err := makeComments(ctx, db, models.Models...); err != nil {
			return errors.Wrap(err, "make comments")
		}
	}

	if err := applyMigrations(ctx, db); err != nil {
		return errors.Wrap(err, "migrations")
	}

	return createIndices(ctx, db)
}

func createIndices(ctx context.Context, db *bun.DB) error {
	log.Info().Msg("creating indexes...")
	return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewCreateIndex().
			IfNotExists().
			Model((*models.Deployment)(nil)).
			Index("deployment_network_name_idx").
			Column("network", "name").
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewCreateIndex().
			IfNotExists().
			Model((*models.Deployment)(nil)).
			Index("deployment_run_id_idx").
			Column("run_id").
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewCreateIndex().
			IfNotExists().
			Model((*models.Deployment)(nil)).
			Index("deployment_status_idx").
			Column("status").
			Exec(ctx); err != nil {
			return err
		}
		return nil
	})
}

func applyMigrations(ctx context.Context, db *bun.DB) error {
	migrator := migrate.NewMigrator(db, migrations.DbMigrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if !group.IsZero() {
		log.Info().Str("group", group.String()).Msg("migrations applied")
	}
	return nil
}

// makeComments - transfers `comment` struct tags into postgres table and column comments
func makeComments(ctx context.Context, db *bun.DB, data ...any) error {
	return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range data {
			typ := reflect.TypeOf(model)
			if typ.Kind() == reflect.Ptr {
				typ = typ.Elem()
			}

			var table string
			for i := 0; i < typ.NumField(); i++ {
				field := typ.Field(i)
				comment, ok := field.Tag.Lookup("comment")
				if !ok {
					continue
				}

				name := tagName(field.Tag.Get("bun"))
				if field.Type == reflect.TypeOf(bun.BaseModel{}) {
					table = strings.TrimPrefix(name, "table:")
					if _, err := tx.ExecContext(ctx, "COMMENT ON TABLE ? IS ?", bun.Ident(table), comment); err != nil {
						return err
					}
					continue
				}
				if table == "" || name == "" {
					continue
				}
				if _, err := tx.ExecContext(ctx, "COMMENT ON COLUMN ?.? IS ?", bun.Ident(table), bun.Ident(name), comment); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func tagName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	return name
}

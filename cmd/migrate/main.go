// Command migrate manages the certhub database schema.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/certhub/backend/internal/infrastructure/config"
	"github.com/certhub/backend/internal/infrastructure/logger"
	"github.com/certhub/backend/internal/infrastructure/migration"
	"github.com/certhub/backend/migrations"
)

const defaultMigrationsPath = "migrations"

var errUsage = errors.New("invalid arguments")

// session is what a command runs against
type session struct {
	log      *zap.Logger
	dir      string
	args     []string
	migrator *migration.Migrator
}

type command struct {
	usage   string
	summary string
	args    int
	offline bool
	run     func(s *session) error
}

var commands = map[string]command{
	"up": {
		usage: "up", summary: "Apply all pending migrations",
		run: func(s *session) error { return s.migrator.Up() },
	},
	"down": {
		usage: "down", summary: "Roll back all migrations",
		run: func(s *session) error { return s.migrator.Down() },
	},
	"step": {
		usage: "step <n>", summary: "Apply n migrations (negative rolls back)", args: 1,
		run: func(s *session) error {
			n, err := strconv.Atoi(s.args[0])
			if err != nil {
				return fmt.Errorf("%w: step count %q", errUsage, s.args[0])
			}
			return s.migrator.Steps(n)
		},
	},
	"goto": {
		usage: "goto <version>", summary: "Migrate to a specific version", args: 1,
		run: func(s *session) error {
			v, err := strconv.ParseUint(s.args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("%w: version %q", errUsage, s.args[0])
			}
			return s.migrator.GoTo(uint(v))
		},
	},
	"version": {
		usage: "version", summary: "Show the applied schema version",
		run: func(s *session) error {
			v, dirty, err := s.migrator.Version()
			if err != nil {
				return err
			}
			if v == 0 {
				s.log.Info("No migrations applied")
				return nil
			}
			s.log.Info("Current schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
			return nil
		},
	},
	"force": {
		usage: "force <version>", summary: "Set the version without migrating, clears a dirty state", args: 1,
		run: func(s *session) error {
			v, err := strconv.Atoi(s.args[0])
			if err != nil {
				return fmt.Errorf("%w: version %q", errUsage, s.args[0])
			}
			s.log.Warn("Forcing schema version", zap.Int("version", v))
			return s.migrator.Force(v)
		},
	},
	"drop": {
		usage: "drop -confirm", summary: "Drop every database object", args: 1,
		run: func(s *session) error {
			if strings.TrimLeft(s.args[0], "-") != "confirm" {
				return fmt.Errorf("%w: drop needs -confirm", errUsage)
			}
			return s.migrator.Drop()
		},
	},
	"create": {
		usage: "create <name> [desc]", summary: "Write a new up/down migration pair", args: 1, offline: true,
		run: func(s *session) error {
			desc := strings.Join(s.args[1:], " ")
			mf, err := migration.CreateMigration(s.dir, s.args[0], desc, time.Now())
			if err != nil {
				return err
			}
			s.log.Info("Migration created",
				zap.String("version", mf.Version),
				zap.String("up_file", mf.UpPath),
				zap.String("down_file", mf.DownPath),
			)
			return nil
		},
	},
	"list": {
		usage: "list", summary: "List migrations in the migrations directory", offline: true,
		run: func(s *session) error {
			names, err := migration.ListMigrations(s.dir)
			if err != nil {
				return err
			}
			s.log.Info("Available migrations", zap.Int("count", len(names)))
			for _, n := range names {
				fmt.Println("  -", n)
			}
			return nil
		},
	},
}

func main() {
	dir := flag.String("path", "", "Path to migrations directory (default: ./migrations)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	embedded := flag.Bool("embedded", false, "Use the migrations compiled into the binary")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok || len(args)-1 < cmd.args {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	s := &session{log: log, args: args[1:], dir: resolveDir(*dir)}
	log.Debug("Running migration command",
		zap.String("command", args[0]),
		zap.String("migrations_path", s.dir),
		zap.Bool("embedded", *embedded),
	)

	if !cmd.offline {
		db, err := openDatabase()
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if *embedded {
			s.migrator, err = migration.NewEmbedded(db, migrations.FS, log)
		} else {
			s.migrator, err = migration.New(db, s.dir, log)
		}
		if err != nil {
			log.Fatal("Failed to create migrator", zap.Error(err))
		}
		defer s.migrator.Close()
	}

	if err := cmd.run(s); err != nil {
		if errors.Is(err, errUsage) {
			log.Error("Usage: migrate "+cmd.usage, zap.Error(err))
			os.Exit(2)
		}
		log.Fatal("Migration command failed", zap.String("command", args[0]), zap.Error(err))
	}
}

func openDatabase() (*sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// resolveDir prefers an explicit path, then ./migrations, then the
// repository copy next to a built binary.
func resolveDir(dir string) string {
	if dir == "" {
		dir = defaultMigrationsPath
		if _, err := os.Stat(dir); err != nil {
			if exe, err := os.Executable(); err == nil {
				candidate := filepath.Join(filepath.Dir(exe), "..", "..", defaultMigrationsPath)
				if _, err := os.Stat(candidate); err == nil {
					dir = candidate
				}
			}
		}
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

func printUsage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("certhub database migration tool\n\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:\n")
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(&b, "  %-22s%s\n", c.usage, c.summary)
	}
	b.WriteString(`
Flags:
  -path string          Path to migrations directory (default: ./migrations)
  -log-level string     Log level: debug, info, warn, error (default: info)
  -embedded             Use the migrations compiled into the binary

The database connection is read from config.toml and CERTHUB_DATABASE_* variables.
`)
	fmt.Fprint(os.Stderr, b.String())
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"traffic-telemetry-api/config"
	"traffic-telemetry-api/database"
	"traffic-telemetry-api/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "trafficctl",
		Usage: "Operator commands for the traffic telemetry backend",
		Commands: []*cli.Command{
			migrateCommand(),
			sensorCommand(),
			apiKeyCommand(),
			thresholdCommand(),
			roadCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

// withDB opens the configured database for the duration of fn.
func withDB(ctx context.Context, fn func(db *gorm.DB) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db.Gorm)
}

func withMigrator(fn func(m *database.Migrator) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	m, err := database.NewMigrator(cfg.Database.GetURL())
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Printf("close migrator: %v", err)
		}
	}()
	return fn(m)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withMigrator(func(m *database.Migrator) error {
						if err := m.Up(); err != nil {
							return err
						}
						fmt.Println("schema up to date")
						return nil
					})
				},
			},
			{
				Name:  "down",
				Usage: "Roll back the most recent migration",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withMigrator(func(m *database.Migrator) error {
						return m.Down()
					})
				},
			},
			{
				Name:  "version",
				Usage: "Show the applied schema version",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withMigrator(func(m *database.Migrator) error {
						version, dirty, err := m.Version()
						if err != nil {
							return err
						}
						fmt.Printf("version %d dirty=%t\n", version, dirty)
						return nil
					})
				},
			},
		},
	}
}

func sensorCommand() *cli.Command {
	return &cli.Command{
		Name:  "sensor",
		Usage: "Manage ALPR sensors",
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Register a sensor and print its uuid",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "uuid", Usage: "use this uuid instead of generating one"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					in := services.SensorInput{Name: ptr(c.String("name"))}
					if raw := c.String("uuid"); raw != "" {
						id, err := uuid.Parse(raw)
						if err != nil {
							return fmt.Errorf("invalid --uuid: %w", err)
						}
						in.UUID = &id
					}
					return withDB(ctx, func(db *gorm.DB) error {
						sensor, err := services.NewSensorService(db).Create(ctx, in)
						if err != nil {
							return err
						}
						fmt.Printf("registered sensor %d %s (%s)\n", sensor.ID, sensor.UUID, sensor.Name)
						return nil
					})
				},
			},
			{
				Name:  "list",
				Usage: "List sensors, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 50},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withDB(ctx, func(db *gorm.DB) error {
						sensors, more, err := services.NewSensorService(db).List(ctx, services.IDPage{Limit: int(c.Int("limit"))})
						if err != nil {
							return err
						}
						w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
						fmt.Fprintln(w, "ID\tUUID\tNAME")
						for _, s := range sensors {
							fmt.Fprintf(w, "%d\t%s\t%s\n", s.ID, s.UUID, s.Name)
						}
						if more {
							fmt.Fprintln(w, "...\t\t")
						}
						return w.Flush()
					})
				},
			},
		},
	}
}

func apiKeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "apikey",
		Usage: "Manage ingestion API keys",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Issue a key; it is printed once",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withDB(ctx, func(db *gorm.DB) error {
						key, plain, err := services.NewAPIKeyService(db).Create(ctx, c.String("name"))
						if err != nil {
							return err
						}
						fmt.Printf("created key %q (prefix %s)\n%s\n", key.Name, key.Prefix, plain)
						return nil
					})
				},
			},
			{
				Name:  "revoke",
				Usage: "Revoke every key with the given prefix",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "prefix", Required: true},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withDB(ctx, func(db *gorm.DB) error {
						return services.NewAPIKeyService(db).Revoke(ctx, c.String("prefix"))
					})
				},
			},
		},
	}
}

func thresholdCommand() *cli.Command {
	return &cli.Command{
		Name:  "threshold",
		Usage: "Inspect or change the intensity threshold",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the active threshold",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withDB(ctx, func(db *gorm.DB) error {
						t, err := services.NewThresholdService(db).Current(ctx)
						if err != nil {
							return err
						}
						if t == nil {
							fmt.Println("no threshold configured")
							return nil
						}
						fmt.Printf("low below %s, medium below %s, high otherwise\n", t.MinValue, t.MaxValue)
						return nil
					})
				},
			},
			{
				Name:  "set",
				Usage: "Set the active threshold",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "min", Required: true},
					&cli.StringFlag{Name: "max", Required: true},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					minValue, err := decimal.NewFromString(c.String("min"))
					if err != nil {
						return fmt.Errorf("invalid --min: %w", err)
					}
					maxValue, err := decimal.NewFromString(c.String("max"))
					if err != nil {
						return fmt.Errorf("invalid --max: %w", err)
					}
					return withDB(ctx, func(db *gorm.DB) error {
						t, err := services.NewThresholdService(db).Set(ctx, minValue, maxValue)
						if err != nil {
							return err
						}
						fmt.Printf("threshold %d set to (%s, %s)\n", t.ID, t.MinValue, t.MaxValue)
						return nil
					})
				},
			},
		},
	}
}

func roadCommand() *cli.Command {
	return &cli.Command{
		Name:  "road",
		Usage: "Bulk road operations",
		Commands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Import roads and speed reads from a CSV file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Required: true, Usage: "CSV with ID,Lat_start,Long_start,Lat_end,Long_end,Length,Speed"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					f, err := os.Open(c.String("file"))
					if err != nil {
						return err
					}
					defer f.Close()
					return withDB(ctx, func(db *gorm.DB) error {
						thresholds := services.NewThresholdService(db)
						res, err := services.NewRoadService(db, thresholds).ImportRoads(ctx, f, time.Now())
						if err != nil {
							return err
						}
						fmt.Printf("imported %d rows: %d roads, %d reads\n", res.Rows, res.RoadsCreated, res.ReadsCreated)
						seeded, err := thresholds.EnsureDefault(ctx)
						if err != nil {
							return err
						}
						if seeded {
							fmt.Println("seeded default threshold")
						}
						return nil
					})
				},
			},
		},
	}
}

func ptr[T any](v T) *T {
	return &v
}

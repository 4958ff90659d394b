package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"gw-fraud-scoring/internal/config"
	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/db"
	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/internal/rulefile"
	"gw-fraud-scoring/internal/service"
	"gw-fraud-scoring/internal/storage/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "rulectl",
		Short:        "Управление антифрод-правилами",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().Bool("verbose", false, "Подробный лог")

	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func cliLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// connect opens a small pool and returns a rule service bound to it.
func connect(cmd *cobra.Command) (*service.RuleService, *pgxpool.Pool, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, nil, err
	}
	log := cliLogger(cmd)

	pool, err := db.NewPool(cmd.Context(), cfg.DB.DSN(), db.PoolConfig{
		MaxConns:        2,
		ApplicationName: "rulectl",
		Retry:           db.RetryConfig{Attempts: 2, Delay: 500 * time.Millisecond},
	}, log)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, nil, err
	}

	return service.NewRuleService(postgres.NewRuleRepository(pool), nil, log), pool, nil
}

func createCmd() *cobra.Command {
	var (
		req       models.CreateRuleRequest
		condition string
		desc      string
		riskScore float64
		inactive  bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Создать правило",
		Example: `  rulectl create --name high_amount --priority 10 --risk-score 0.8 \
    --condition '{"field":"amount","operator":">","value":5000}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Condition = json.RawMessage(condition)
			if desc != "" {
				req.Description = &desc
			}
			if cmd.Flags().Changed("risk-score") {
				req.Actions.RiskScore = &riskScore
			}
			active := !inactive
			req.IsActive = &active

			rules, pool, err := connect(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			rule, err := rules.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "создано правило %q (id=%d)\n", rule.Name, rule.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Name, "name", "n", "", "Уникальное имя правила")
	cmd.Flags().StringVarP(&condition, "condition", "c", "", "Условие в JSON")
	cmd.Flags().StringVarP(&desc, "description", "d", "", "Описание")
	cmd.Flags().IntVarP(&req.Priority, "priority", "p", 0, "Приоритет, больше значит раньше")
	cmd.Flags().Float64Var(&riskScore, "risk-score", models.DefaultRuleRiskScore, "Вклад в риск при срабатывании, [0, 1]")
	cmd.Flags().BoolVar(&req.Actions.Flag, "flag", false, "Пометить транзакцию при срабатывании")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Создать выключенным")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("condition")

	return cmd
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Показать правила по убыванию приоритета",
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, pool, err := connect(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			list, err := rules.List(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPRIORITY\tACTIVE\tRISK\tCONDITION")
			for _, r := range list {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%t\t%.2f\t%s\n",
					r.ID, r.Name, r.Priority, r.IsActive, r.Actions.Score(), r.Condition)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolP("json", "j", false, "Вывод в JSON")
	return cmd
}

func importCmd() *cobra.Command {
	var skipExisting bool

	cmd := &cobra.Command{
		Use:   "import [file.yaml]",
		Short: "Загрузить правила из YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			reqs, err := rulefile.Parse(f)
			if err != nil {
				return err
			}

			rules, pool, err := connect(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			return importRules(cmd.Context(), rules, reqs, skipExisting, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&skipExisting, "skip-existing", true, "Пропускать правила с уже занятым именем")
	return cmd
}

func migrateCmd() *cobra.Command {
	var (
		dir   string
		steps int
	)

	cmd := &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Управление схемой базы данных",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}

			mg, err := db.NewMigrator(cfg.DB.MigrationURL(), dir, cliLogger(cmd))
			if err != nil {
				return err
			}
			defer mg.Close()

			var version uint
			switch args[0] {
			case "up":
				version, err = mg.Up()
			case "down":
				version, err = mg.Down(steps)
			default:
				version, err = mg.Version()
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "версия схемы: %d\n", version)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "migrations", "Каталог с миграциями")
	cmd.Flags().IntVar(&steps, "steps", 1, "Сколько миграций откатить для down")
	return cmd
}

func importRules(ctx context.Context, rules service.RuleManager, reqs []models.CreateRuleRequest, skipExisting bool, out io.Writer) error {
	created, skipped := 0, 0
	for _, req := range reqs {
		rule, err := rules.Create(ctx, req)
		switch {
		case err == nil:
			created++
			fmt.Fprintf(out, "создано: %s (id=%d)\n", rule.Name, rule.ID)
		case skipExisting && errors.Is(err, custom_err.ErrRuleExists):
			skipped++
			fmt.Fprintf(out, "пропущено, уже существует: %s\n", req.Name)
		default:
			return fmt.Errorf("правило %q: %w", req.Name, err)
		}
	}
	fmt.Fprintf(out, "итого: создано %d, пропущено %d\n", created, skipped)
	return nil
}

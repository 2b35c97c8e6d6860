// rota 命令行工具：离线求解、验证和批量排班
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/paiban/rota/internal/config"
	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/logger"
	"github.com/paiban/rota/pkg/model"
	"github.com/paiban/rota/pkg/scheduler"
	"github.com/paiban/rota/pkg/scheduler/constraint"
	"github.com/paiban/rota/pkg/scheduler/objective"
	"github.com/paiban/rota/pkg/scheduler/solver"
	"github.com/paiban/rota/pkg/validator"
)

// 全局参数
var (
	configPath string
	strategy   string
	timeLimit  time.Duration
	logLevel   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rota",
		Short:         "公平值班排班求解器",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(logger.Config{
				Level:      logLevel,
				Format:     "console",
				Output:     "stderr",
				TimeFormat: time.Kitchen,
			})
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("ROTA_CONFIG"), "YAML 配置文件")
	root.PersistentFlags().StringVar(&strategy, "strategy", "", "目标策略 lexicographic/weighted，覆盖配置")
	root.PersistentFlags().DurationVar(&timeLimit, "time-limit", 0, "求解时间预算，覆盖配置")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "日志级别")

	root.AddCommand(newSolveCmd(), newValidateCmd(), newBatchCmd())
	return root
}

// loadOptions 读取配置并应用命令行覆盖
func loadOptions() (scheduler.Options, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return scheduler.Options{}, err
	}
	opts := cfg.SchedulerOptions()
	if strategy != "" {
		s, err := objective.ParseStrategy(strategy)
		if err != nil {
			return opts, err
		}
		opts.Strategy = s
	}
	if timeLimit > 0 {
		opts.TimeLimit = timeLimit
	}
	return opts, nil
}

func newScheduler() (*scheduler.Scheduler, error) {
	opts, err := loadOptions()
	if err != nil {
		return nil, err
	}
	return scheduler.New(solver.NewPBEngine(), opts), nil
}

func newSolveCmd() *cobra.Command {
	var showFairness bool

	cmd := &cobra.Command{
		Use:   "solve input.json output.json",
		Short: "求解单个排班请求并写出排班表",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(args[0])
			if err != nil {
				return err
			}
			s, err := newScheduler()
			if err != nil {
				return err
			}

			result, err := s.Generate(cmd.Context(), req)
			if err != nil {
				return describe(err)
			}
			if err := writeJSON(args[1], result.Schedule); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %d assignments to %s\n", len(result.Schedule), args[1])
			if showFairness && result.Fairness != nil {
				printFairness(cmd, result)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showFairness, "fairness", false, "输出每个员工的公平性指标")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate input.json schedule.json",
		Short: "检查排班表是否满足全部排班规则",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(args[0])
			if err != nil {
				return err
			}
			var schedule model.Schedule
			if err := readJSON(args[1], &schedule); err != nil {
				return err
			}
			opts, err := loadOptions()
			if err != nil {
				return err
			}

			cfg := validator.DefaultDetectorConfig()
			cfg.Options = constraint.Options{
				MaxConsecutiveDays: opts.MaxConsecutiveDays,
				Top3Guarantee:      opts.Top3Guarantee,
				ForbidUnavailable:  opts.ForbidUnavailable,
			}
			cfg.Costs.UnavailableThreshold = opts.UnavailableThreshold

			conflicts, err := validator.NewConflictDetector(cfg, nil).DetectAll(req, schedule)
			if err != nil {
				return describe(err)
			}

			out := cmd.OutOrStdout()
			errorCount := 0
			for _, c := range conflicts {
				if c.IsError() {
					errorCount++
				}
				fmt.Fprintf(out, "[%s] %s: %s\n", c.Severity, c.Type, c.Message)
			}
			if errorCount > 0 {
				return fmt.Errorf("排班表存在 %d 个冲突", errorCount)
			}
			fmt.Fprintln(out, "排班表有效")
			return nil
		},
	}
}

// batchOutcome 批量求解中单个文件的结果
type batchOutcome struct {
	File     string           `json:"file"`
	Status   string           `json:"status"`
	Schedule model.Schedule   `json:"schedule,omitempty"`
	Duration string           `json:"duration,omitempty"`
	Error    *errors.AppError `json:"error,omitempty"`
}

func newBatchCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "batch input.json...",
		Short: "并行求解多个排班请求",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs := make([]*model.Request, len(args))
			for i, path := range args {
				req, err := readRequest(path)
				if err != nil {
					return err
				}
				reqs[i] = req
			}
			s, err := newScheduler()
			if err != nil {
				return err
			}

			items := s.SolveBatch(cmd.Context(), reqs)

			outcomes := make([]batchOutcome, len(items))
			failed := 0
			for i, item := range items {
				outcomes[i].File = args[i]
				if item.Err != nil {
					failed++
					outcomes[i].Status = "FAILED"
					outcomes[i].Error = errors.From(item.Err)
					continue
				}
				outcomes[i].Status = item.Result.Status.String()
				outcomes[i].Schedule = item.Result.Schedule
				outcomes[i].Duration = item.Result.Duration.String()

				if outDir != "" {
					name := strings.TrimSuffix(filepath.Base(args[i]), filepath.Ext(args[i])) + ".schedule.json"
					if err := writeJSON(filepath.Join(outDir, name), item.Result.Schedule); err != nil {
						return err
					}
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(outcomes); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d/%d 个请求求解失败", failed, len(items))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "", "为每个请求写出 <name>.schedule.json")
	return cmd
}

// printFairness 打印每个员工的值班天数、成本和偏好命中
func printFairness(cmd *cobra.Command, result *scheduler.Result) {
	out := cmd.OutOrStdout()
	f := result.Fairness
	fmt.Fprintln(out, "\n--- Fairness ---")
	for _, e := range f.EmployeeStats {
		fmt.Fprintf(out, "%-16s days=%d cost=%d rank1=%d top3=%d worst=%d longest_run=%d\n",
			e.EmployeeName, e.Days, e.TotalCost, e.Rank1Days, e.Top3Days, e.WorstTierDays, e.LongestRun)
	}
	fmt.Fprintf(out, "min rank-1 days:   %d\n", result.Objective[objective.TermMinRank1Days])
	fmt.Fprintf(out, "max employee cost: %d\n", result.Objective[objective.TermMaxEmployeeCost])
	fmt.Fprintf(out, "total cost:        %d\n", result.Objective[objective.TermTotalCost])
	fmt.Fprintf(out, "fairness score:    %.1f\n", f.OverallFairnessScore)
}

// describe 把无解原因附加到错误信息中
func describe(err error) error {
	if reason := errors.GetReason(err); reason != "" {
		return fmt.Errorf("%w (reason: %s)", err, reason)
	}
	return err
}

func readRequest(path string) (*model.Request, error) {
	var req model.Request
	if err := readJSON(path, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("解析 %s 失败: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

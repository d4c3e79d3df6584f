package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuemby/filemgr/pkg/copypipeline"
	"github.com/cuemby/filemgr/pkg/dispatcher"
	"github.com/cuemby/filemgr/pkg/events"
	"github.com/cuemby/filemgr/pkg/log"
	"github.com/cuemby/filemgr/pkg/metrics"
	"github.com/cuemby/filemgr/pkg/swf"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "filemgr",
	Short:   "filemgr coordinates distributed file-copy tasks",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("filemgr version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Address to serve Prometheus metrics on (empty disables)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(copyCmd)
	rootCmd.AddCommand(masterCmd)
	rootCmd.AddCommand(slaveCmd)
	rootCmd.AddCommand(swfCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func serveMetrics(cmd *cobra.Command) {
	addr, _ := cmd.Flags().GetString("metrics-addr")
	if addr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Logger.Error().Err(err).Msg("metrics server exited")
		}
	}()
}

func notifyContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// --- copy: run a single CP task locally, outside the dispatcher ---

var copyCmd = &cobra.Command{
	Use:   "copy <src> <dst>",
	Short: "Copy a file or directory using the copy pipeline",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		algorithmName, _ := cmd.Flags().GetString("algorithm")
		serveMetrics(cmd)

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		tm := copypipeline.NewTaskManager(broker)
		task, err := tm.StartCopy(args[0], args[1], algorithmName)
		if err != nil {
			return fmt.Errorf("start copy: %w", err)
		}

		for {
			state := task.State()
			if state == copypipeline.TaskCompleted || state == copypipeline.TaskStopped || state == copypipeline.TaskError {
				break
			}
			time.Sleep(50 * time.Millisecond)
		}

		copied, total := task.Progress()
		fmt.Printf("copied %d/%d bytes, final state: %s\n", copied, total, task.State())
		if task.State() == copypipeline.TaskError {
			return fmt.Errorf("copy task ended in error state")
		}
		return nil
	},
}

func init() {
	copyCmd.Flags().String("algorithm", "default", "Copy algorithm: default or sync")
}

// --- master: run the MW dispatcher's Master ---

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Run the master/worker dispatcher's Master",
	RunE: func(cmd *cobra.Command, args []string) error {
		maxRetries, _ := cmd.Flags().GetInt("max-retries")
		serveMetrics(cmd)

		m := dispatcher.NewMaster(dispatcher.MasterConfig{MaxRetries: maxRetries})
		m.Start()
		defer m.Stop()

		ctx, cancel := notifyContext()
		defer cancel()
		<-ctx.Done()
		log.Logger.Info().Msg("master shutting down")
		return nil
	},
}

func init() {
	masterCmd.Flags().Int("max-retries", 3, "Maximum redistribution attempts before abandoning a task")
}

// --- worker (slave): connect to a Master and execute tasks ---

var slaveCmd = &cobra.Command{
	Use:   "worker <master-addr>",
	Short: "Run an MW slave that connects to a master",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		if id == "" {
			id = uuid.NewString()
		}
		capabilities, _ := cmd.Flags().GetStringSlice("capabilities")
		serveMetrics(cmd)

		s := dispatcher.NewSlave(id, args[0], capabilities)
		s.RegisterExecutor("copy", newCopyExecutor(nil))

		ctx, cancel := notifyContext()
		defer cancel()
		if err := s.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("slave run: %w", err)
		}
		return nil
	},
}

func init() {
	slaveCmd.Flags().String("id", "", "Slave identifier (defaults to a generated UUID if empty)")
	slaveCmd.Flags().StringSlice("capabilities", []string{"copy"}, "Task types this slave can execute")
}

// --- swf: run the scheduled worker framework's scheduler ---

var swfCmd = &cobra.Command{
	Use:   "swf-scheduler",
	Short: "Run the scheduled worker framework's scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		maxWorkers, _ := cmd.Flags().GetInt("max-workers")
		maxWorkersPerHost, _ := cmd.Flags().GetInt("max-workers-per-host")
		protocols, _ := cmd.Flags().GetStringSlice("protocols")
		serveMetrics(cmd)

		s := swf.NewScheduler(swf.SchedulerConfig{
			MaxWorkers:        maxWorkers,
			MaxWorkersPerHost: maxWorkersPerHost,
		})
		defer s.Stop()

		for _, spec := range protocols {
			parts := strings.SplitN(spec, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("invalid --protocols entry %q, expected name=executable", spec)
			}
			s.RegisterProtocol(parts[0], parts[1], nil)
		}

		ctx, cancel := notifyContext()
		defer cancel()
		<-ctx.Done()
		log.Logger.Info().Msg("swf scheduler shutting down")
		return nil
	},
}

func init() {
	swfCmd.Flags().Int("max-workers", 5, "Maximum concurrent workers per protocol")
	swfCmd.Flags().Int("max-workers-per-host", 2, "Maximum concurrent workers per protocol per host")
	swfCmd.Flags().StringSlice("protocols", nil, "Protocol registrations as name=executable pairs")
}

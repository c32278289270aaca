// Command capsched runs the capacity-share task scheduler: it loads a
// queue configuration, subscribes to cluster membership, and serves its
// status and metrics endpoints until terminated.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cenkalti/backoff"

	"github.com/capshare/scheduler/async"
	"github.com/capshare/scheduler/cloud/cluster"
	"github.com/capshare/scheduler/common"
	"github.com/capshare/scheduler/common/endpoints"
	cerrors "github.com/capshare/scheduler/common/errors"
	log "github.com/capshare/scheduler/common/log"
	"github.com/capshare/scheduler/common/log/hooks"
	"github.com/capshare/scheduler/config"
	"github.com/capshare/scheduler/scheduler/domain"
	"github.com/capshare/scheduler/scheduler/server"
)

func main() {
	log.AddHook(hooks.NewContextHook())
	if err := newRootCmd().Execute(); err != nil {
		log.Error(err)
		if exitErr, ok := err.(*cerrors.ExitCodeError); ok {
			os.Exit(int(exitErr.GetExitCode()))
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:   "capsched",
		Short: "Capacity-share task scheduler",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "capsched.yaml", "path to the scheduler configuration file")

	root.AddCommand(newValidateConfigCmd(&cfgPath))
	root.AddCommand(newServeCmd(&cfgPath))
	return root
}

func newValidateConfigCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Parse and validate the scheduler configuration without starting",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return cerrors.NewError(err, cerrors.ConfigLoadFailureExitCode)
			}
			if err := cfg.Validate(); err != nil {
				return cerrors.NewError(err, cerrors.ConfigValidationFailureExitCode)
			}
			fmt.Println("configuration OK")
			return nil
		},
	}
}

func newServeCmd(cfgPath *string) *cobra.Command {
	var httpAddr string
	var fetchInterval time.Duration
	var demo bool
	var capacityOverride string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduler and serve its status/metrics endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*cfgPath, httpAddr, fetchInterval, demo, capacityOverride)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":9091", "address to serve the status/metrics endpoints on")
	cmd.Flags().DurationVar(&fetchInterval, "fetch-interval", 10*time.Second, "cluster membership poll interval")
	cmd.Flags().BoolVar(&demo, "demo", false, "run an in-process JobTracker harness that submits and heartbeats fake work")
	cmd.Flags().StringVar(&capacityOverride, "queue-capacity-override", "", "ad-hoc queue=percent overrides, e.g. \"default=60,adhoc=40\"")
	return cmd
}

// applyCapacityOverrides patches cfg's parsed queue capacities with any
// ad-hoc "name=percent" pairs passed on the command line, applied after
// the file is loaded and before validation.
func applyCapacityOverrides(cfg *config.Config, raw string) {
	overrides := common.SplitCommaSepToMap(raw)
	for name, percentStr := range overrides {
		percent, err := strconv.ParseFloat(percentStr, 64)
		if err != nil {
			log.WithField("queue", name).WithError(err).Warn("ignoring malformed queue-capacity-override value")
			continue
		}
		for i := range cfg.Queues {
			if cfg.Queues[i].Name == name {
				cfg.Queues[i].CapacityPercent = &percent
			}
		}
	}
}

func runServe(cfgPath, httpAddr string, fetchInterval time.Duration, demo bool, capacityOverride string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cerrors.NewError(err, cerrors.ConfigLoadFailureExitCode)
	}
	applyCapacityOverrides(cfg, capacityOverride)
	if err := cfg.Validate(); err != nil {
		return cerrors.NewError(err, cerrors.ConfigValidationFailureExitCode)
	}

	fetcher := cluster.NewStaticFetcher(cfg.Workers)
	stateCh := make(chan []cluster.Node)
	fetchCron := cluster.NewFetchCron(fetcher, fetchInterval, stateCh)
	defer fetchCron.Close()

	initial, err := fetcher.Fetch()
	if err != nil {
		return err
	}
	cl := cluster.NewCluster(initial, nil, stateCh)
	defer cl.Close()

	clusterStatus, err := server.NewClusterStatus(cl, cfg.WorkerSlots())
	if err != nil {
		return err
	}
	defer clusterStatus.Close()

	dispatcher, err := server.NewDispatcher(clusterStatus, cfg.QueueConfigs(), cfg.MemoryAware, nil)
	if err != nil {
		return cerrors.NewError(err, cerrors.SchedulerStartFailureExitCode)
	}
	if err := dispatcher.Start(); err != nil {
		return cerrors.NewError(err, cerrors.SchedulerStartFailureExitCode)
	}
	defer dispatcher.Terminate()

	slotsPerMap, slotsPerReduce := cfg.DefaultSlotsPerTask()
	scheduler := server.NewScheduler(dispatcher, clusterStatus, slotsPerMap, slotsPerReduce)

	stat := endpoints.MakeStatsReceiver("capsched")
	httpServer := endpoints.NewServer(httpAddr, stat, dispatcher)

	if demo {
		go runDemoJobTracker(scheduler, clusterStatus)
	}

	log.WithField("addr", httpAddr).Info("serving")
	return httpServer.Serve()
}

// runDemoJobTracker is example end-to-end wiring, not a production
// JobTracker: it submits one sample job and then, on a fixed tick,
// simulates a heartbeat transport call for every known worker, retrying
// a call that errors out (simulating a flaky transport) with a backoff
// before giving up on that worker for the tick. The simulated heartbeat
// does not call the Dispatcher's AssignTasks, so the sample job's tasks
// are not handed out. None of this runs inside the dispatcher's lock —
// it only calls the public Scheduler surface.
func runDemoJobTracker(scheduler server.Scheduler, clusterStatus *server.ClusterStatus) {
	_, err := scheduler.ScheduleJob(domain.JobDefinition{
		Queue:     "default",
		Requestor: "demo",
		Tasks: []domain.TaskDefinition{
			{TaskID: "demo-m1", Kind: domain.Map, SlotsRequired: 1},
			{TaskID: "demo-r1", Kind: domain.Reduce, SlotsRequired: 1},
		},
	})
	if err != nil {
		log.WithError(err).Error("demo job submission failed")
		return
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		workers := clusterStatus.GetTaskTrackers()
		runner := async.NewRunner()
		for _, w := range workers {
			worker := w
			runner.RunAsync(func() error {
				return heartbeatWithRetry(worker)
			}, func(err error) {
				if err != nil {
					log.WithField("worker", worker.ID).WithError(err).Warn("heartbeat transport failed after retries")
				}
			})
		}
		for runner.NumRunning() > 0 {
			runner.ProcessMessages()
		}
	}
}

// heartbeatWithRetry simulates an unreliable heartbeat transport: a
// call randomly fails, and is retried with exponential backoff before
// giving up on this tick.
func heartbeatWithRetry(worker *domain.Worker) error {
	op := func() error {
		if rand.Intn(10) == 0 {
			return fmt.Errorf("simulated transport error for %s", worker.ID)
		}
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 5 * time.Second
	return backoff.Retry(op, b)
}

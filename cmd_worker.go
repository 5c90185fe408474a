package main

import (
	"fmt"

	"sjsage522/asinharvester/services/worker"

	"github.com/spf13/cobra"
)

func newWorkerCmd(a *app) *cobra.Command {
	var (
		jobsFile string
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the jobs file on a schedule",
		Long: `Worker reads the jobs file (JOBS_FILE, default jobs.yaml), runs every job one after
another, saves the identifiers and publishes one event per job to the Redis stream
when REDIS_STREAM is set. It then sleeps CRAWL_INTERVAL_SECONDS and repeats.

Jobs file example:
  jobs:
    - name: straps
      url: https://www.amazon.com/s?k=watch+strap
      account: alice
      category: watch strap
      mode: filtered
      maxPages: 3
      filter:
        minRating: 4
        excludeBrands: Acme, Generic`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobsFile == "" {
				jobsFile = a.cfg.JobsFile
			}
			jobs, err := worker.LoadJobs(jobsFile)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				return fmt.Errorf("no jobs in %s", jobsFile)
			}

			ctx := cmd.Context()
			services, err := initializeServices(ctx, a.cfg, need{navigator: true, store: true, publisher: true})
			if err != nil {
				return err
			}
			defer services.Cleanup()

			w := worker.NewWorker(ctx, jobs, services.Navigator, services.Store, services.Publisher, a.cfg.CrawlInterval, worker.Options{
				Blocker: services.Blocker,
				Timing:  services.Timing,
			})

			a.log.Info().
				Int("job_count", len(jobs)).
				Dur("crawl_interval", a.cfg.CrawlInterval).
				Bool("once", once).
				Msg("Starting asin harvest worker")

			if once {
				w.RunOnce()
				return nil
			}
			return w.Start()
		},
	}
	cmd.Flags().StringVarP(&jobsFile, "jobs", "j", "", "Jobs file (default JOBS_FILE)")
	cmd.Flags().BoolVar(&once, "once", false, "Run every job once and exit")
	return cmd
}

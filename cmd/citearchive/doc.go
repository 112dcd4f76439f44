// Package main hosts the citearchive command line tool.
//
// Pipeline overview:
//   - harvest: samples titles_per_category members of each configured Wikipedia category and writes
//     every external link they cite to paths.citations (category, article, citation_link).
//   - clean: drops incomplete and duplicate rows, keeps http(s) links, strips "www.", flags links that
//     already point at web.archive.org, and writes paths.clean plus the paths.non_archive work list.
//   - check: the long-running stage. Each pending link is looked up in the Wayback Machine availability
//     API with bounded retries and exponential backoff, one at a time with a polite delay. Results are
//     appended to paths.output, which doubles as the resume checkpoint, and synced every
//     runner.flush_every rows. Lookup failures go to paths.error_log. The machine is kept awake for the
//     duration of the run.
//   - finalize: deduplicates and lowercases the output store into paths.final.
//   - report: prints coverage aggregates over paths.clean and paths.final.
//
// Operational notes:
//   - Configuration comes from defaults, an optional .env file (--env), CITEARCHIVE_* environment
//     variables and an optional config file (--config), in increasing precedence.
//   - SIGINT/SIGTERM cancel the check run between attempts or during sleeps; buffered rows are flushed
//     and synced before exit, and the next invocation resumes from them.
//   - Optional extras for check: metrics.listen_addr serves /metrics and /healthz; storage.gcs_bucket or
//     storage.local_dir receives a copy of the output store; pubsub.topic_name receives a run-completed
//     notification.
package main

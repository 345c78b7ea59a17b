// Package main hosts the page analyzer entrypoint.
//
// Architecture overview:
//   - HTTP front end: internal/api.Server renders the submission form, the paginated
//     site list and each site's check history, with flash messages carried in a cookie.
//   - Analyzer service: internal/analyzer normalizes submissions via internal/urlnorm,
//     stores each scheme://host once, and on demand fetches the site through the
//     Colly-based fetcher, appending one check per received response.
//   - Persistence: internal/storage/postgres runs every repository call in its own
//     transaction on a pgx pool; checks of one site are serialized by a row lock so
//     sequence numbers stay gap-free. internal/storage/memory serves local runs.
//   - Plumbing: Viper loads config from YAML, .env and PAGEANALYZER_* variables; zap
//     provides structured logs; Prometheus metrics are served on /metrics.
//
// Quick checklist:
//   - Configure DATABASE_URL (or PAGEANALYZER_DB_DSN) and optionally PORT.
//   - Apply the schema: go run ./cmd/pageanalyzer migrate up
//   - Serve: go run ./cmd/pageanalyzer serve [--config config.yaml]
//   - Without Postgres: PAGEANALYZER_STORAGE_BACKEND=memory go run ./cmd/pageanalyzer serve
package main

// Package api hosts the HTML front end of the page analyzer. Notable routes:
//   - GET / with the submission form and POST /urls to add a site.
//   - GET /urls (paginated) and GET /urls/{id} with the check history.
//   - POST /urls/{id}/checks to fetch the site and record a check.
//   - GET /healthz and /readyz for probes, GET /metrics for Prometheus scraping.
package api

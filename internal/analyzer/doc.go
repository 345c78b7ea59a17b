// Package analyzer holds the page analyzer domain: tracked URLs, their check
// history, and the Service that ties normalization, fetching and persistence
// together. Concrete fetchers and repositories live in other packages; this
// package must not import database drivers or HTTP clients.
package analyzer

package analyzer

import (
	"math"
	"time"
)

// URL is a tracked site. Address is the normalized scheme://host form.
type URL struct {
	ID        int64
	Address   string
	CreatedAt time.Time
}

// Check is one recorded fetch outcome for a URL.
type Check struct {
	ID             int64
	URLID          int64
	SequenceNumber int
	StatusCode     int
	H1             string
	Title          string
	Description    string
	CheckedAt      time.Time
}

// URLSummary pairs a URL with its most recent check, if any.
type URLSummary struct {
	URL            URL
	LastStatusCode *int
	LastCheckedAt  *time.Time
}

// URLPage is one page of URL summaries ordered by id descending.
type URLPage struct {
	Rows     []URLSummary
	Total    int
	Page     int
	PageSize int
}

// TotalPages returns ceil(Total/PageSize).
func (p URLPage) TotalPages() int {
	if p.PageSize <= 0 || p.Total <= 0 {
		return 0
	}
	return int(math.Ceil(float64(p.Total) / float64(p.PageSize)))
}

// URLDetail is a URL with its full check history, newest first.
type URLDetail struct {
	URL    URL
	Checks []Check
}

// SEO holds the fields extracted from a fetched page. Missing elements are "".
type SEO struct {
	H1          string
	Title       string
	Description string
}

// FetchResult describes a response received from a server, whatever its status.
type FetchResult struct {
	StatusCode int
	SEO        SEO
	FinalURL   string
	// ServerDate is the parsed Date response header; zero when absent or invalid.
	ServerDate time.Time
}

// Outcome reports what AddURL did with a submitted address.
type Outcome string

// Outcomes of AddURL.
const (
	OutcomeCreated Outcome = "created"
	OutcomeExists  Outcome = "exists"
	OutcomeInvalid Outcome = "invalid"
)

// AddResult is returned by Service.AddURL.
type AddResult struct {
	URL     URL
	Outcome Outcome
}

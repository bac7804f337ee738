// Package catalog holds the domain model for product-catalog acquisition: page
// requests and responses, raw and cleaned records, the error taxonomy surfaced by
// fetchers, the retry backoff policy, and the Paginator that drives a fetch run.
package catalog

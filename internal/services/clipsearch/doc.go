// Package clipsearch provides access to the clip-search HTTP API used by the
// discovery stage. It paginates through results for one word at a time and
// maps wire results to domain candidates, stamping the configured source slug
// so natural keys stay stable across runs.
package clipsearch

// Package search implements the clip discovery stage: one query per
// vocabulary word against the clip-search service, with a per-word candidate
// cache and checkpoint markers so interrupted runs resume without repeating
// network work.
package search

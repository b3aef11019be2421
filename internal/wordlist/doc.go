// Package wordlist loads the vocabulary words a run processes, from CSV
// files or xlsx vocabulary bundles.
//
// An unreadable or empty word source is a configuration error: no useful
// work can proceed without input, so loading problems abort the run rather
// than being recorded as unit failures.
package wordlist

// Package ingestion walks a folder, extracts every supported file into
// records, fingerprints them and hands them to the chunker.
//
// A failing file never aborts the run: each file yields a FileResult and
// failures are logged and counted by reason. Output order is sorted by
// path relative to the folder, independent of worker scheduling.
package ingestion

// Package logfile renders the retained event history as plain-text log files.
//
// GenerateLogFiles always produces debug-complete and, as configured, one
// debug-<type> file per event type present and one source-<slug> file per
// event source. Entries are sorted by timestamp. A category whose text is
// larger than MaxFileSizeKB is left out entirely, never cut.
//
// Files are handed to a Downloader: DirectoryDownloader writes them into a
// local directory and ObjectStoreDownloader stores them in a NATS JetStream
// object store bucket. With AutoDownload set, reaching DownloadThreshold
// retained events writes every category and then removes the written events
// from the history. Events stored during the pass are kept.
//
// ExportJSON is the structured alternative: every retained event, the
// pipeline Stats and an optional configuration snapshot in one JSON file.
package logfile

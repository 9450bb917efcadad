// Package checkpoint stores frozen iterators so interrupted crawls can resume.
//
// Snapshots are wrapped in a small envelope that records the format version and
// the node type, so a file written for something else is rejected instead of
// thawed. Two backends are provided:
//   - FileStore writes {base}_{prefix}_{magic}.json (or .json.zst when
//     compression is on) atomically into a data directory.
//   - RedisStore keeps the same envelope under {prefix}:{base}:{magic} with a TTL,
//     which lets several crawler hosts share progress.
//
// The default data directory is platform specific:
//   - Linux: $XDG_DATA_HOME/igcrawler/resume or ~/.local/share/igcrawler/resume
//   - macOS: ~/Library/Application Support/igcrawler/resume
//   - Windows: %APPDATA%/igcrawler/resume
package checkpoint

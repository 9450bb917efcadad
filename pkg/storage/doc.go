// Package storage writes downloaded media into an output directory.
//
// A Manager indexes the files already present when it is created, so media
// saved by an earlier run is recognised and skipped. Every write goes to a
// hidden temporary file first and is renamed into place once complete, which
// means an interrupted download never leaves a truncated file under the final
// name.
//
// Usage:
//
//	manager, err := storage.NewManager(filepath.Join("downloads", "natgeo"))
//	if err != nil {
//	    return err
//	}
//	name := storage.FileName(post.Shortcode(), 0, false)
//	if !manager.IsDownloaded(name) {
//	    _, err = manager.Save(body, name)
//	}
package storage

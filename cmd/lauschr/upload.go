package main

import (
	"os"
	"path/filepath"
	"strings"

	"lauschr/internal/config"
	"lauschr/internal/feeds"
	"lauschr/internal/fileutil"
)

// stageUpload turns a local file into an upload. Unless move is set, the
// file is first copied next to the audio directory so the source survives
// the service moving it into place. The returned cleanup removes any copy
// left behind.
func stageUpload(cfg *config.Config, source string, move bool) (feeds.Upload, func()) {
	source = strings.TrimSpace(source)
	upload := feeds.Upload{TempPath: source, Name: filepath.Base(source)}
	noop := func() {}
	if source == "" {
		return upload, noop
	}
	info, err := os.Stat(source)
	if err != nil || !info.Mode().IsRegular() {
		return upload, noop
	}
	upload.Size = info.Size()
	if move {
		return upload, noop
	}

	tmp, err := os.CreateTemp(cfg.Paths.AudioDir, ".upload-*"+filepath.Ext(source))
	if err != nil {
		upload.Err = err
		return upload, noop
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	cleanup := func() { _ = fileutil.RemoveIfExists(tmpPath) }
	if err := fileutil.CopyFileVerified(source, tmpPath); err != nil {
		upload.Err = err
		return upload, cleanup
	}
	upload.TempPath = tmpPath
	return upload, cleanup
}

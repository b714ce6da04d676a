package feeds

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"lauschr/internal/apperr"
	"lauschr/internal/fileutil"
	"lauschr/internal/logging"
	"lauschr/internal/textutil"
)

const (
	sniffLength       = 512
	audioStemFallback = "episode"
	audioStampLayout  = "20060102-150405"
)

// storedAudio describes an upload after it was moved into a feed's audio
// directory.
type storedAudio struct {
	FileName string
	Path     string
	URL      string
	Size     int64
	MimeType string
}

// checkedUpload is an upload that passed validation but was not moved yet.
type checkedUpload struct {
	upload   Upload
	ext      string
	size     int64
	mimeType string
}

// checkUpload validates an upload without touching it: transport error,
// presence, size limit, extension allow-list and sniffed content type.
func (s *Service) checkUpload(upload Upload) (checkedUpload, error) {
	if upload.Err != nil {
		rejected := apperr.NewUploadError(apperr.UploadTransport, "file was not received completely")
		rejected.Err = upload.Err
		return checkedUpload{}, rejected
	}
	if strings.TrimSpace(upload.TempPath) == "" {
		return checkedUpload{}, apperr.NewUploadError(apperr.UploadNoFile, "no file was uploaded")
	}
	info, err := os.Stat(upload.TempPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return checkedUpload{}, apperr.NewUploadError(apperr.UploadNoFile, "uploaded file is missing")
		}
		rejected := apperr.NewUploadError(apperr.UploadTransport, "uploaded file cannot be read")
		rejected.Err = err
		return checkedUpload{}, rejected
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return checkedUpload{}, apperr.NewUploadError(apperr.UploadNoFile, "uploaded file is empty")
	}

	size := info.Size()
	if limit := s.cfg.Upload.MaxFileSize; size > limit {
		return checkedUpload{}, apperr.NewUploadError(apperr.UploadTooLarge,
			"file is %s, maximum is %s", humanize.IBytes(uint64(size)), humanize.IBytes(uint64(limit)))
	}

	name := upload.Name
	if strings.TrimSpace(name) == "" {
		name = filepath.Base(upload.TempPath)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" || !s.cfg.AllowsExtension(ext) {
		return checkedUpload{}, apperr.NewUploadError(apperr.UploadExtension,
			"%q is not allowed, allowed: %s", ext, strings.Join(s.cfg.Upload.AllowedExtensions, ", "))
	}

	mimeType, err := sniffFile(upload.TempPath)
	if err != nil {
		rejected := apperr.NewUploadError(apperr.UploadTransport, "uploaded file cannot be read")
		rejected.Err = err
		return checkedUpload{}, rejected
	}
	if !s.cfg.AllowsType(mimeType) {
		return checkedUpload{}, apperr.NewUploadError(apperr.UploadMIMEType, "content type %s is not allowed", mimeType)
	}

	upload.Name = name
	return checkedUpload{upload: upload, ext: ext, size: size, mimeType: mimeType}, nil
}

// storeUpload moves a checked upload to
// <audio>/<feedID>/<stem>-<YYYYMMDD-HHMMSS>.<ext>, adding a numeric suffix
// when that name is taken.
func (s *Service) storeUpload(ctx context.Context, feedID string, checked checkedUpload) (storedAudio, error) {
	dir := s.cfg.FeedAudioDir(feedID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		rejected := apperr.NewUploadError(apperr.UploadMoveFailed, "audio directory cannot be created")
		rejected.Err = err
		return storedAudio{}, rejected
	}

	stem := strings.TrimSuffix(checked.upload.Name, filepath.Ext(checked.upload.Name))
	stem = textutil.SlugOr(stem, audioStemFallback) + "-" + s.now().UTC().Format(audioStampLayout)
	target, err := fileutil.ReserveUnique(dir, stem, "."+checked.ext)
	if err != nil {
		rejected := apperr.NewUploadError(apperr.UploadMoveFailed, "no free file name in %s", dir)
		rejected.Err = err
		return storedAudio{}, rejected
	}
	if err := fileutil.MoveFile(checked.upload.TempPath, target); err != nil {
		_ = fileutil.RemoveIfExists(target)
		rejected := apperr.NewUploadError(apperr.UploadMoveFailed, "file could not be stored")
		rejected.Err = err
		return storedAudio{}, rejected
	}

	fileName := filepath.Base(target)
	s.log(ctx).Debug("audio stored",
		logging.FeedID(feedID),
		logging.String("audio_file", fileName),
		logging.Int64("audio_"+logging.FieldBytes, checked.size),
	)
	return storedAudio{
		FileName: fileName,
		Path:     target,
		URL:      s.cfg.AudioURL(feedID, fileName),
		Size:     checked.size,
		MimeType: checked.mimeType,
	}, nil
}

// removeAudio deletes a stored audio file of a feed. An empty name is a no-op.
func (s *Service) removeAudio(feedID, fileName string) error {
	if fileName == "" {
		return nil
	}
	return fileutil.RemoveIfExists(filepath.Join(s.cfg.FeedAudioDir(feedID), filepath.Base(fileName)))
}

func sniffFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	head := make([]byte, sniffLength)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return DetectAudioType(head[:n]), nil
}

// DetectAudioType returns the media type of an audio file from its leading
// bytes. Podcast containers are recognised first; anything else falls back
// to the generic content sniffer.
func DetectAudioType(head []byte) string {
	switch {
	case len(head) >= 12 && bytes.Equal(head[4:8], []byte("ftyp")):
		switch string(head[8:11]) {
		case "M4A", "M4B", "M4P":
			return "audio/x-m4a"
		}
		return "video/mp4"
	case bytes.HasPrefix(head, []byte("ID3")):
		return "audio/mpeg"
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xF6 == 0xF0:
		// ADTS sync word with layer bits 00.
		return "audio/aac"
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return "audio/mpeg"
	}
	mimeType := http.DetectContentType(head)
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return mimeType
}

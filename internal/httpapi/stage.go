package httpapi

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"lukechampine.com/blake3"
)

const defaultExt = ".webm"

// stagedUpload is the uploaded audio persisted to a uniquely named temp file.
type stagedUpload struct {
	path string
	hash string // blake3 of the raw upload, for log correlation
}

// remove deletes the temp file. Deletion errors are swallowed.
func (u *stagedUpload) remove() {
	_ = os.Remove(u.path)
}

// stageUpload writes the request's audio field to a temp file whose suffix
// matches the upload's extension. Any failure here is a client error.
func stageUpload(r *http.Request) (*stagedUpload, *apiError) {
	file, header, err := r.FormFile("audio")
	if err != nil {
		return nil, &apiError{kind: kindBadUpload, err: fmt.Errorf("failed to read audio: %w", err)}
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "whisperd-*"+uploadExt(header.Filename))
	if err != nil {
		return nil, &apiError{kind: kindBadUpload, err: fmt.Errorf("failed to stage audio: %w", err)}
	}

	h := blake3.New(32, nil)
	_, err = io.Copy(io.MultiWriter(tmp, h), file)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, &apiError{kind: kindBadUpload, err: fmt.Errorf("failed to read audio: %w", err)}
	}
	return &stagedUpload{
		path: tmp.Name(),
		hash: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// uploadExt derives the temp-file suffix from the original filename,
// defaulting to .webm for missing or extension-less names.
func uploadExt(filename string) string {
	if ext := filepath.Ext(filename); ext != "" {
		return ext
	}
	return defaultExt
}

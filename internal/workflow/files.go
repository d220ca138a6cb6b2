package workflow

import (
	"fmt"
	"path"
	"strings"
)

type Kind string

const (
	KindImage Kind = "image"
	KindText  Kind = "text"
)

// Per-submission attachment limits.
const (
	TextFilesLimit   = 4
	VisualFilesLimit = 3
)

// KindOf classifies an attachment the way the upload form does.
func KindOf(filename, contentType string) Kind {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "image/") {
		return KindImage
	}
	switch ct {
	case "application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return KindText
	}
	switch strings.ToLower(strings.TrimPrefix(path.Ext(filename), ".")) {
	case "png", "jpg", "jpeg":
		return KindImage
	}
	return KindText
}

// ValidateFiles enforces the attachment limits.
func ValidateFiles(files []File) error {
	if len(files) == 0 {
		return fmt.Errorf("at least one file is required")
	}
	var images, texts int
	for _, f := range files {
		if KindOf(f.Name, f.ContentType) == KindImage {
			images++
		} else {
			texts++
		}
	}
	if images > VisualFilesLimit {
		return fmt.Errorf("at most %d visual files are allowed", VisualFilesLimit)
	}
	if texts > TextFilesLimit {
		return fmt.Errorf("at most %d text files are allowed", TextFilesLimit)
	}
	return nil
}

package util

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DownloadName returns the name a browser should save a file as. Display
// names are free text, so the extension of the content type is appended
// when the name doesn't already carry one.
func DownloadName(name, contentType string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "download"
	}

	if path.Ext(name) != "" {
		return name
	}

	if m := mimetype.Lookup(contentType); m != nil {
		return name + m.Extension()
	}

	return name
}

package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDownloadName(t *testing.T) {
	assert.Equal(t, "report.pdf", DownloadName("report.pdf", "application/pdf"))
	assert.Equal(t, "report.pdf", DownloadName("report", "application/pdf"))
	assert.Equal(t, "holiday.png", DownloadName("holiday", "image/png"))
	assert.Equal(t, "notes", DownloadName("notes", "application/x-unknown-thing"))
	assert.Equal(t, "download", DownloadName("  ", ""))
}

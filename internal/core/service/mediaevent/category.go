package mediaevent

import (
	"path/filepath"
	"strings"
	"tus-upload/internal/core/domain"
)

// rawImageMimeTypes lists camera RAW formats
var rawImageMimeTypes = map[string]struct{}{
	"image/x-canon-cr2":     {},
	"image/x-canon-crw":     {},
	"image/x-epson-erf":     {},
	"image/x-nikon-nef":     {},
	"image/x-nikon-nrw":     {},
	"image/x-sony-arw":      {},
	"image/x-sony-sr2":      {},
	"image/x-sony-srf":      {},
	"image/x-adobe-dng":     {},
	"image/x-panasonic-raw": {},
	"image/x-panasonic-rw2": {},
	"image/x-olympus-orf":   {},
	"image/x-pentax-pef":    {},
	"image/x-samsung-srw":   {},
	"image/x-fuji-raf":      {},
	"image/x-kodak-dcr":     {},
	"image/x-kodak-kdc":     {},
	"image/x-minolta-mrw":   {},
	"image/x-raw":           {},
}

var rawImageExtensions = map[string]struct{}{
	".cr2": {}, ".cr3": {}, ".crw": {}, ".erf": {}, ".nef": {}, ".nrw": {}, ".arw": {},
	".sr2": {}, ".srf": {}, ".dng": {}, ".raw": {}, ".rw2": {}, ".orf": {}, ".pef": {},
	".srw": {}, ".raf": {}, ".dcr": {}, ".kdc": {}, ".mrw": {}, ".3fr": {}, ".iiq": {},
	".x3f": {}, ".tif": {}, ".tiff": {},
}

// videoMimeTypes lists the video formats accepted for processing, with their extensions
var videoMimeTypes = map[string][]string{
	"video/mp4":        {".mp4", ".m4v"},
	"video/webm":       {".webm"},
	"video/quicktime":  {".mov"},
	"video/avi":        {".avi"},
	"video/x-msvideo":  {".avi"},
	"video/x-matroska": {".mkv"},
	"video/x-flv":      {".flv"},
	"video/x-ms-wmv":   {".wmv"},
	"video/ogg":        {".ogv"},
	"video/3gpp":       {".3gp"},
	"video/mpeg":       {".mpg", ".mpeg"},
}

func isVideoExtension(ext string) bool {
	for _, exts := range videoMimeTypes {
		for _, allowed := range exts {
			if ext == allowed {
				return true
			}
		}
	}
	return false
}

// extractMimeType drops parameters such as "; charset=utf-8"
func extractMimeType(contentType string) string {
	mimeType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// Categorize derives the processing category of a finished upload from its declared type, its
// detected type and its file extension. RAW images win over video.
func Categorize(filename, declaredType, detectedType string) domain.FileCategory {
	declared := extractMimeType(declaredType)
	detected := extractMimeType(detectedType)
	ext := strings.ToLower(filepath.Ext(filename))

	if _, ok := rawImageMimeTypes[declared]; ok {
		return domain.FileCategoryRawImage
	}
	if _, ok := rawImageExtensions[ext]; ok {
		return domain.FileCategoryRawImage
	}

	if _, ok := videoMimeTypes[declared]; ok {
		return domain.FileCategoryVideo
	}
	if _, ok := videoMimeTypes[detected]; ok {
		return domain.FileCategoryVideo
	}
	if isVideoExtension(ext) {
		return domain.FileCategoryVideo
	}

	return domain.FileCategoryOther
}

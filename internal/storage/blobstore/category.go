package blobstore

import (
	"path/filepath"
	"strings"
)

// Категории файлов.
const (
	CategoryImage    = "image"
	CategoryDocument = "document"
	CategoryAudio    = "audio"
	CategoryVideo    = "video"
	CategoryArchive  = "archive"
	CategoryOther    = "other"
)

var extCategories = map[string]string{
	".jpg": CategoryImage, ".jpeg": CategoryImage, ".png": CategoryImage, ".gif": CategoryImage,
	".bmp": CategoryImage, ".webp": CategoryImage, ".svg": CategoryImage,

	".mp4": CategoryVideo, ".avi": CategoryVideo, ".mov": CategoryVideo, ".wmv": CategoryVideo,
	".flv": CategoryVideo, ".mkv": CategoryVideo, ".webm": CategoryVideo,

	".mp3": CategoryAudio, ".wav": CategoryAudio, ".flac": CategoryAudio, ".aac": CategoryAudio,
	".ogg": CategoryAudio, ".wma": CategoryAudio,

	".pdf": CategoryDocument, ".doc": CategoryDocument, ".docx": CategoryDocument,
	".xls": CategoryDocument, ".xlsx": CategoryDocument, ".ppt": CategoryDocument,
	".pptx": CategoryDocument, ".txt": CategoryDocument,

	".zip": CategoryArchive, ".rar": CategoryArchive, ".7z": CategoryArchive,
	".tar": CategoryArchive, ".gz": CategoryArchive,
}

// Ext возвращает последнее расширение имени в нижнем регистре
// ("archive.tar.gz" → ".gz").
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(filepath.Base(name)))
}

// TypeOf определяет категорию по расширению файла.
func TypeOf(name string) string {
	if c, ok := extCategories[Ext(name)]; ok {
		return c
	}
	return CategoryOther
}

// CategoryOf возвращает переданную категорию, если она не пустая,
// иначе категорию по расширению.
func CategoryOf(name, override string) string {
	if o := strings.ToLower(strings.TrimSpace(override)); o != "" {
		return o
	}
	return TypeOf(name)
}

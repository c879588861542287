package models

import (
	"fmt"
	"math/rand"
	"path"
	"strings"
	"time"
)

const (
	uploadsWebPrefix    = "/uploads/"
	defaultImageWebPath = "/images/default-post.png"
	defaultThumbWebPath = "/images/default-thumb.png"
)

var supportedImageExtensions = []string{"jpg", "jpeg", "png", "gif", "bmp"}

// PostImage is an attachment stored under the uploads directory.
type PostImage struct {
	Path         string    `json:"image_path"`
	Name         string    `json:"image_name"`
	OriginalName string    `json:"original_name"`
	UploadTime   time.Time `json:"upload_time"`
	FileSize     int64     `json:"file_size"`
}

// NewPostImage builds the stored name and dated directory for an uploaded file.
func NewPostImage(originalName, postID string, size int64, now time.Time) PostImage {
	ext := extensionOf(originalName)
	if ext == "" {
		ext = "jpg"
	}
	return PostImage{
		Path:         fmt.Sprintf("posts/%04d/%02d", now.Year(), int(now.Month())),
		Name:         fmt.Sprintf("%s_%d_%d.%s", postID, now.UnixMilli(), rand.Intn(1000), ext),
		OriginalName: originalName,
		UploadTime:   now,
		FileSize:     size,
	}
}

// IsValid requires both path and name to be non-blank.
func (img PostImage) IsValid() bool {
	return strings.TrimSpace(img.Path) != "" && strings.TrimSpace(img.Name) != ""
}

// Same reports whether two attachments point at the same stored file.
func (img PostImage) Same(other PostImage) bool {
	return img.Path == other.Path && img.Name == other.Name
}

// RelativeFilePath joins path and name, or returns "" for an incomplete image.
func (img PostImage) RelativeFilePath() string {
	if img.Path == "" || img.Name == "" {
		return ""
	}
	return strings.TrimSuffix(img.Path, "/") + "/" + img.Name
}

// Extension is the lower-case extension of the stored name.
func (img PostImage) Extension() string {
	return extensionOf(img.Name)
}

func (img PostImage) IsSupportedFileType() bool {
	ext := img.Extension()
	for _, s := range supportedImageExtensions {
		if s == ext {
			return true
		}
	}
	return false
}

// ThumbnailName inserts "_thumb" before the extension.
func (img PostImage) ThumbnailName() string {
	ext := path.Ext(img.Name)
	if ext == "" {
		return img.Name + "_thumb"
	}
	return strings.TrimSuffix(img.Name, ext) + "_thumb." + img.Extension()
}

func (img PostImage) WebPath() string {
	rel := img.RelativeFilePath()
	if rel == "" {
		return defaultImageWebPath
	}
	return uploadsWebPrefix + rel
}

func (img PostImage) ThumbnailWebPath() string {
	if img.Path == "" || img.Name == "" {
		return defaultThumbWebPath
	}
	return uploadsWebPrefix + strings.TrimSuffix(img.Path, "/") + "/" + img.ThumbnailName()
}

// FormattedFileSize renders the size as B, KB or MB.
func (img PostImage) FormattedFileSize() string {
	switch {
	case img.FileSize < 1024:
		return fmt.Sprintf("%d B", img.FileSize)
	case img.FileSize < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(img.FileSize)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(img.FileSize)/(1024*1024))
	}
}

func extensionOf(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type RegisterRequest struct {
	StudentID       string `json:"student_id" validate:"required,alphanum,min=4,max=32"`
	Nickname        string `json:"nickname" validate:"required,max=32"`
	Email           string `json:"email" validate:"required"`
	Code            string `json:"code" validate:"required,len=6,numeric"`
	Password        string `json:"password" validate:"required,min=6,max=64"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// ImageInput describes an attachment already accepted by the upload layer.
type ImageInput struct {
	OriginalName string `json:"original_name" validate:"required,max=255"`
	FileSize     int64  `json:"file_size" validate:"gte=0"`
}

type CreatePostRequest struct {
	Title     string       `json:"title" validate:"required"`
	Content   string       `json:"content" validate:"required"`
	Category  string       `json:"category" validate:"required"`
	Anonymous bool         `json:"is_anonymous"`
	Publish   bool         `json:"publish"`
	Images    []ImageInput `json:"images" validate:"max=9,dive"`
}

type UpdatePostRequest struct {
	Title    string `json:"title" validate:"required"`
	Content  string `json:"content" validate:"required"`
	Category string `json:"category" validate:"required"`
}

type ProfileRequest struct {
	Nickname   string `json:"nickname" validate:"max=32"`
	AvatarPath string `json:"avatar_path" validate:"max=512"`
}

type PasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=64"`
}

// FeedQuery selects a page of the public feed. SearchIn is "title" (default)
// or "content", which matches titles and bodies.
type FeedQuery struct {
	Sort     string
	Category string
	Keyword  string
	SearchIn string
	Page     int
	PageSize int
}

func errInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// checkStruct runs the validator and folds its field errors into one
// ErrInvalidInput.
func (f *Forum) checkStruct(v interface{}) error {
	err := f.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errInput(err.Error())
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s(%s)", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return errInput("bad fields " + strings.Join(fields, ", "))
}

package resource

import "errors"

var (
	// storage errors
	ErrStorageRead   = errors.New("cannot read resource document")
	ErrMalformedData = errors.New("resource document is not a JSON array of records")
	ErrStorageWrite  = errors.New("cannot write resource document")

	// record errors
	ErrRecordNotFound = errors.New("record not found")

	// upload errors
	ErrInvalidFileType = errors.New("only image files are allowed")
	ErrFileTooLarge    = errors.New("file exceeds the upload size limit")
	ErrInvalidUpload   = errors.New("invalid upload")
	ErrUpload          = errors.New("image upload failed")

	// request errors
	ErrInvalidForm = errors.New("invalid form data")
)

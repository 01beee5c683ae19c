package service

import "errors"

// Ошибки уровня сервисов. NotFound намеренно объединяет "нет записи"
// и "нет доступа", чтобы не раскрывать существование чужих файлов.
var (
	ErrQuotaExceeded   = errors.New("storage quota exceeded")
	ErrPayloadTooLarge = errors.New("file size exceeds maximum allowed size")
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("operation is not valid for current file status")
	ErrAccessDenied    = errors.New("access denied")
)

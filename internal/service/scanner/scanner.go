package scanner

import "context"

// Result представляет вердикт антивируса по набору байт
type Result struct {
	Infected   bool
	Signatures []string
}

// Scanner определяет интерфейс антивирусного сканера.
// Реализация — внешний движок, для пайплайна это оракул
// "заражён / чист (+ имена сигнатур)".
type Scanner interface {
	Scan(ctx context.Context, data []byte) (*Result, error)
}

package scanner

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dutchcoders/go-clamd"
)

// ClamdScanner реализует Scanner поверх демона clamd (протокол INSTREAM)
type ClamdScanner struct {
	client  *clamd.Clamd
	timeout time.Duration
}

// NewClamdScanner создает сканер и проверяет доступность демона
func NewClamdScanner(addr string, timeout time.Duration) (*ClamdScanner, error) {
	if addr == "" {
		return nil, fmt.Errorf("clamd address is required")
	}

	client := clamd.NewClamd(addr)
	if err := client.Ping(); err != nil {
		return nil, fmt.Errorf("clamd is not reachable at %s: %w", addr, err)
	}

	return &ClamdScanner{
		client:  client,
		timeout: timeout,
	}, nil
}

// Scan передает байты демону и собирает найденные сигнатуры.
// Зависший демон обрывается по таймауту — для очереди это
// обычная повторяемая ошибка.
func (s *ClamdScanner) Scan(ctx context.Context, data []byte) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	abort := make(chan bool)
	defer close(abort)

	responses, err := s.client.ScanStream(bytes.NewReader(data), abort)
	if err != nil {
		return nil, fmt.Errorf("failed to scan stream: %w", err)
	}

	result := &Result{}
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("scan timed out: %w", ctx.Err())
		case resp, ok := <-responses:
			if !ok {
				return result, nil
			}
			switch resp.Status {
			case clamd.RES_FOUND:
				result.Infected = true
				result.Signatures = append(result.Signatures, resp.Description)
			case clamd.RES_ERROR, clamd.RES_PARSE_ERROR:
				return nil, fmt.Errorf("scanner error: %s", resp.Raw)
			}
		}
	}
}

var _ Scanner = (*ClamdScanner)(nil)

package preview

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/h2non/bimg"
	"github.com/xfrr/goffmpeg/transcoder"
)

const (
	maxImageSize = 512           // максимальный размер превью в пикселях
	jpegQuality  = 85            // качество JPEG
	tmpDir       = "/tmp/previews" // директория для временных файлов
)

// ContentType — тип содержимого всех генерируемых превью
const ContentType = "image/jpeg"

// Service генерирует производные объекты (превью) для обработанных файлов
type Service struct {
	ffmpegAvailable bool
}

// NewService создает новый сервис для работы с превью
func NewService() *Service {
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		log.Printf("Warning: failed to create directory %s: %v", tmpDir, err)
	}

	// Постеры видео требуют ffmpeg; без него генерируем только превью изображений
	_, err := exec.LookPath("ffmpeg")
	if err != nil {
		log.Printf("[Preview] ffmpeg not found, video posters disabled: %v", err)
	}

	return &Service{ffmpegAvailable: err == nil}
}

// Supports сообщает, умеет ли сервис строить превью для данного MIME-типа.
// SVG исключён: это векторный формат, и до превью он не доходит.
func (s *Service) Supports(mimeType string) bool {
	if strings.HasPrefix(mimeType, "video/") {
		return s.ffmpegAvailable
	}
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp", "image/tiff", "image/bmp":
		return true
	}
	return false
}

// Generate строит превью для изображения или постер для видео
func (s *Service) Generate(data []byte, mimeType string) ([]byte, error) {
	if strings.HasPrefix(mimeType, "video/") {
		return s.generateVideoPoster(data)
	}
	return s.generateImagePreview(data)
}

// generateImagePreview генерирует превью для изображений
func (s *Service) generateImagePreview(data []byte) ([]byte, error) {
	image := bimg.NewImage(data)

	// Получаем текущие размеры
	size, err := image.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to get image size: %w", err)
	}

	width, height := size.Width, size.Height
	if width > maxImageSize || height > maxImageSize {
		width, height = calculateNewDimensions(width, height, maxImageSize)
	}

	// Создаем превью; метаданные (EXIF и прочее) вырезаем
	processed, err := image.Process(bimg.Options{
		Width:         width,
		Height:        height,
		Quality:       jpegQuality,
		Type:          bimg.JPEG,
		StripMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	return processed, nil
}

// generateVideoPoster извлекает кадр из начала видео и сжимает его до превью
func (s *Service) generateVideoPoster(data []byte) ([]byte, error) {
	if !s.ffmpegAvailable {
		return nil, fmt.Errorf("ffmpeg is not available")
	}

	id := uuid.New().String()
	inputPath := filepath.Join(tmpDir, id+".video")
	framePath := filepath.Join(tmpDir, id+".jpg")
	defer os.Remove(inputPath)
	defer os.Remove(framePath)

	if err := os.WriteFile(inputPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write temp video file: %w", err)
	}

	trans := new(transcoder.Transcoder)
	if err := trans.Initialize(inputPath, framePath); err != nil {
		return nil, fmt.Errorf("failed to initialize transcoder: %w", err)
	}

	trans.MediaFile().SetSeekTime("00:00:01")
	trans.MediaFile().SetVframes(1)
	trans.MediaFile().SetSkipAudio(true)

	done := trans.Run(false)
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to extract video frame: %w", err)
	}

	frame, err := os.ReadFile(framePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted frame: %w", err)
	}

	return s.generateImagePreview(frame)
}

// calculateNewDimensions вычисляет новые размеры с сохранением пропорций
func calculateNewDimensions(width, height, maxSize int) (newWidth, newHeight int) {
	if width > height {
		newWidth = maxSize
		newHeight = (height * maxSize) / width
	} else {
		newHeight = maxSize
		newWidth = (width * maxSize) / height
	}
	return
}
